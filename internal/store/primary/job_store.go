package primary

import (
	"context"
	"errors"
	"fmt"

	"tributary/internal/models"
	"tributary/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

// --- Job Store Implementation ---

// CreateJob inserts the Job row in its initial queued state. Submission calls
// this before enqueuing the execution message, so a delivered message always
// finds its row.
func (s *StoreImpl) CreateJob(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO ingestion_jobs
			(id, tenant_id, data_types, range_start, range_end, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING created_at`

	err := s.db.QueryRow(ctx, query,
		job.ID,
		job.TenantID,
		job.DataTypes,
		job.Range.Start,
		job.Range.End,
		string(models.JobStatusQueued),
	).Scan(&job.CreatedAt)
	if err != nil {
		return fmt.Errorf("create job %s: %w", job.ID, err)
	}
	job.Status = models.JobStatusQueued
	return nil
}

// GetJob returns the full Job record.
func (s *StoreImpl) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM ingestion_jobs WHERE id = $1`

	job := &models.Job{}
	if err := scanJob(s.db.QueryRow(ctx, query, id), job); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// ListJobs returns a tenant's jobs, newest first.
func (s *StoreImpl) ListJobs(ctx context.Context, tenantID string, limit, offset int) ([]*models.Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM ingestion_jobs
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.db.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list jobs for tenant %s: %w", tenantID, err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job := &models.Job{}
		if err := scanJob(rows, job); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return jobs, nil
}

// TransitionJob performs the compare-and-set status update. The WHERE clause
// carries the expected status, so two concurrent executions of the same job
// cannot both claim it: the loser sees zero rows affected and gets
// ErrStatusConflict. started_at and completed_at are stamped exactly once, at
// the transition that reaches them.
func (s *StoreImpl) TransitionJob(ctx context.Context, id uuid.UUID, from, to models.JobStatus, update store.JobUpdate) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", store.ErrIllegalTransition, from, to)
	}

	query := `
		UPDATE ingestion_jobs
		SET status = $3,
		    started_at = CASE WHEN $3 = 'processing' THEN now() ELSE started_at END,
		    completed_at = CASE WHEN $3 IN ('completed', 'completed_with_errors', 'failed')
		                        THEN now() ELSE completed_at END,
		    error_message = COALESCE($4, error_message),
		    updated_at = now()
		WHERE id = $1 AND status = $2`

	cmdTag, err := s.db.Exec(ctx, query, id, string(from), string(to), update.ErrorMessage)
	if err != nil {
		return fmt.Errorf("transition job %s %s -> %s: %w", id, from, to, err)
	}
	if cmdTag.RowsAffected() > 0 {
		return nil
	}

	// Distinguish a missing row from a status mismatch for the caller.
	var current string
	err = s.db.QueryRow(ctx, `SELECT status FROM ingestion_jobs WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("job %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read status of job %s: %w", id, err)
	}
	return fmt.Errorf("job %s is %s, expected %s: %w", id, current, from, store.ErrStatusConflict)
}

// RecordTypeResult merges one finished data type's counts into the job's
// records_processed / skipped_records maps. Guarded on status = processing so
// a straggling task that finishes after the job was finalized cannot touch a
// terminal record.
func (s *StoreImpl) RecordTypeResult(ctx context.Context, id uuid.UUID, dataType string, processed, skipped int) error {
	query := `
		UPDATE ingestion_jobs
		SET records_processed = records_processed || jsonb_build_object($2::text, $3::int),
		    skipped_records = skipped_records || jsonb_build_object($2::text, $4::int),
		    updated_at = now()
		WHERE id = $1 AND status = 'processing'`

	cmdTag, err := s.db.Exec(ctx, query, id, dataType, processed, skipped)
	if err != nil {
		return fmt.Errorf("record result for job %s type %s: %w", id, dataType, err)
	}
	if cmdTag.RowsAffected() == 0 {
		log.WithFields(log.Fields{"job_id": id, "data_type": dataType}).
			Debug("Job no longer processing, dropping late type result")
	}
	return nil
}

// RecordTypeProgress updates the per-type extraction counter for pollers.
// Best-effort: same late-update no-op rule as RecordTypeResult.
func (s *StoreImpl) RecordTypeProgress(ctx context.Context, id uuid.UUID, dataType string, yielded int) error {
	query := `
		UPDATE ingestion_jobs
		SET progress = progress || jsonb_build_object($2::text, $3::int),
		    updated_at = now()
		WHERE id = $1 AND status = 'processing'`

	if _, err := s.db.Exec(ctx, query, id, dataType, yielded); err != nil {
		return fmt.Errorf("record progress for job %s type %s: %w", id, dataType, err)
	}
	return nil
}

// Ensure StoreImpl satisfies the JobStore interface
var _ store.JobStore = (*StoreImpl)(nil)
