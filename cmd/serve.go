package cmd

import (
	"fmt"
	"net/http"

	"tributary/internal/apihandlers"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	serveAddr string
	servePort string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the job submission and status API server",
	Long: `Starts an HTTP server exposing job submission, job status polling and
tenant job listing. Execution itself happens in the worker process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close()

		router := gin.Default()

		apiHandler := apihandlers.NewAPIHandler(appInstance.JobService)

		v1 := router.Group("/api/v1")
		{
			jobGroup := v1.Group("/jobs")
			{
				jobGroup.POST("", apiHandler.SubmitJobHandler)
				jobGroup.GET("", apiHandler.ListJobsHandler)
				jobGroup.GET("/:id", apiHandler.GetJobHandler)
			}
		}

		router.GET("/health", func(c *gin.Context) {
			if err := appInstance.Store.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		addr := serveAddr
		if addr == "" {
			addr = appInstance.Config.Server.Address
		}
		port := servePort
		if port == "" {
			port = appInstance.Config.Server.Port
		}
		listenAddr := fmt.Sprintf("%s:%s", addr, port)
		log.WithField("addr", listenAddr).Info("Starting API server")

		if err := router.Run(listenAddr); err != nil {
			return fmt.Errorf("failed to run API server: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (defaults to server.address)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (defaults to server.port)")
}
