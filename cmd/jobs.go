package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"tributary/internal/clix"
	"tributary/internal/models"
	"tributary/internal/services"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Submit and inspect ingestion jobs",
}

var (
	submitTenant string
	submitStart  string
	submitEnd    string
)

var jobsSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit an ingestion job for a tenant and date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close()

		types, err := clix.ParseDataTypes(cmd.Flags())
		if err != nil {
			return err
		}

		job, err := appInstance.JobService.Submit(cmd.Context(), services.SubmitJobParams{
			TenantID:  submitTenant,
			Start:     submitStart,
			End:       submitEnd,
			DataTypes: types,
		})
		if err != nil {
			return fmt.Errorf("submit job: %w", err)
		}

		color.Green("Job %s queued for tenant %s (%s, types: %s)",
			job.ID, job.TenantID, job.Range, strings.Join(job.DataTypes, ", "))
		return nil
	},
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the full record of one ingestion job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close()

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid job id %q", args[0])
		}

		job, err := appInstance.JobService.Get(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("load job: %w", err)
		}

		printStatus(job.Status)
		fmt.Printf("Tenant:    %s\n", job.TenantID)
		fmt.Printf("Range:     %s\n", job.Range)
		fmt.Printf("Types:     %s\n", strings.Join(job.DataTypes, ", "))
		fmt.Printf("Created:   %s\n", job.CreatedAt.Format(time.RFC3339))
		fmt.Printf("Started:   %s\n", formatNullTime(job.StartedAt, time.RFC3339))
		fmt.Printf("Completed: %s\n", formatNullTime(job.CompletedAt, time.RFC3339))
		for dataType, count := range job.RecordsProcessed {
			fmt.Printf("  %s: %d records", dataType, count)
			if skipped := job.SkippedRecords[dataType]; skipped > 0 {
				fmt.Printf(" (%d skipped)", skipped)
			}
			fmt.Println()
		}
		if job.ErrorMessage != nil {
			color.Red("Error: %s", *job.ErrorMessage)
		}
		return nil
	},
}

var jobsListTenant string

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a tenant's recent ingestion jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close()

		page, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return err
		}

		jobs, err := appInstance.JobService.List(cmd.Context(), jobsListTenant, page.Limit, page.Offset)
		if err != nil {
			return fmt.Errorf("list jobs: %w", err)
		}
		if len(jobs) == 0 {
			fmt.Println("No jobs found.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Job ID", "Status", "Range", "Types", "Created At", "Completed At"})
		table.SetBorder(true)
		table.SetRowLine(true)

		for _, job := range jobs {
			table.Append([]string{
				job.ID.String(),
				string(job.Status),
				job.Range.String(),
				strings.Join(job.DataTypes, ","),
				job.CreatedAt.Format(time.RFC3339),
				formatNullTime(job.CompletedAt, time.RFC3339),
			})
		}
		table.Render()
		return nil
	},
}

func printStatus(status models.JobStatus) {
	switch status {
	case models.JobStatusCompleted:
		color.Green("Status:    %s", status)
	case models.JobStatusCompletedWithErrors:
		color.Yellow("Status:    %s", status)
	case models.JobStatusFailed:
		color.Red("Status:    %s", status)
	default:
		fmt.Printf("Status:    %s\n", status)
	}
}

// formatNullTime formats a nullable timestamp.
func formatNullTime(t *time.Time, layout string) string {
	if t != nil {
		return t.Format(layout)
	}
	return "N/A"
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsSubmitCmd)
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsListCmd)

	jobsSubmitCmd.Flags().StringVar(&submitTenant, "tenant", "", "Tenant identifier (required)")
	jobsSubmitCmd.Flags().StringVar(&submitStart, "from", "", "Range start date, YYYY-MM-DD (required)")
	jobsSubmitCmd.Flags().StringVar(&submitEnd, "to", "", "Range end date, YYYY-MM-DD (required)")
	jobsSubmitCmd.Flags().StringSlice("types", nil, "Data types to ingest (required)")
	jobsSubmitCmd.MarkFlagRequired("tenant")
	jobsSubmitCmd.MarkFlagRequired("from")
	jobsSubmitCmd.MarkFlagRequired("to")
	jobsSubmitCmd.MarkFlagRequired("types")

	jobsListCmd.Flags().StringVar(&jobsListTenant, "tenant", "", "Tenant identifier (required)")
	jobsListCmd.Flags().IntP("limit", "n", 20, "Maximum number of jobs to list")
	jobsListCmd.Flags().IntP("offset", "o", 0, "Number of jobs to skip")
	jobsListCmd.MarkFlagRequired("tenant")
}
