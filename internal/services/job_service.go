package services

import (
	"context"
	"fmt"
	"sort"

	"tributary/internal/models"
	"tributary/internal/store"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// JobService is the submission and query surface for ingestion jobs. Submit
// rejects invalid input synchronously, before any Job row exists, and never
// reports success until the execution message is durably queued.
type JobService struct {
	jobs  store.JobStore
	queue store.JobClient
}

func NewJobService(jobs store.JobStore, queue store.JobClient) *JobService {
	return &JobService{jobs: jobs, queue: queue}
}

// SubmitJobParams is a job request as received from the API or CLI.
type SubmitJobParams struct {
	TenantID  string
	Start     string
	End       string
	DataTypes []string
}

func (p SubmitJobParams) validate() (models.DateRange, []string, error) {
	if p.TenantID == "" {
		return models.DateRange{}, nil, models.ErrNoTenant
	}

	r, err := models.NewDateRange(p.Start, p.End)
	if err != nil {
		return models.DateRange{}, nil, err
	}

	seen := make(map[string]bool)
	var types []string
	for _, t := range p.DataTypes {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		types = append(types, t)
	}
	if len(types) == 0 {
		return models.DateRange{}, nil, models.ErrNoDataTypes
	}
	sort.Strings(types)
	return r, types, nil
}

// Submit validates the request, creates the Job row in its queued state, and
// enqueues the execution message. If enqueueing fails the error is returned
// and the row stays queued; resubmitting the same job ID re-enqueues without
// a duplicate delivery thanks to queue-side task ID dedup.
func (s *JobService) Submit(ctx context.Context, params SubmitJobParams) (*models.Job, error) {
	r, types, err := params.validate()
	if err != nil {
		return nil, err
	}

	job := &models.Job{
		ID:        uuid.New(),
		TenantID:  params.TenantID,
		DataTypes: types,
		Range:     r,
		Status:    models.JobStatusQueued,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := s.queue.EnqueueIngestionJob(ctx, job); err != nil {
		return nil, fmt.Errorf("job %s created but not enqueued: %w", job.ID, err)
	}

	log.WithFields(log.Fields{
		"job_id":    job.ID,
		"tenant_id": job.TenantID,
		"types":     job.DataTypes,
		"range":     job.Range.String(),
	}).Info("Submitted ingestion job")
	return job, nil
}

// Get returns the full job record for pollers.
func (s *JobService) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return s.jobs.GetJob(ctx, id)
}

// List returns a tenant's recent jobs, newest first.
func (s *JobService) List(ctx context.Context, tenantID string, limit, offset int) ([]*models.Job, error) {
	if tenantID == "" {
		return nil, models.ErrNoTenant
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.jobs.ListJobs(ctx, tenantID, limit, offset)
}
