package store

import (
	"context"

	"tributary/internal/models"

	"github.com/google/uuid"
)

// --- Job Store ---

// JobUpdate carries the optional fields a status transition may set.
// Timestamps (started_at, completed_at) are derived from the target status
// inside the store, not supplied by callers.
type JobUpdate struct {
	ErrorMessage *string
}

// JobStore is the single source of truth for job status. TransitionJob is a
// compare-and-set against the stored status: it fails with ErrStatusConflict
// when the job is not in the expected state, which is what makes redelivered
// executions safe.
type JobStore interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, tenantID string, limit, offset int) ([]*models.Job, error)
	TransitionJob(ctx context.Context, id uuid.UUID, from, to models.JobStatus, update JobUpdate) error
	// RecordTypeResult commits the merged row count for one finished data
	// type. It only applies while the job is processing; late updates from
	// straggling tasks are silent no-ops.
	RecordTypeResult(ctx context.Context, id uuid.UUID, dataType string, processed, skipped int) error
	// RecordTypeProgress updates the observability counter for one data
	// type while extraction is still running. Same no-op rule as above.
	RecordTypeProgress(ctx context.Context, id uuid.UUID, dataType string, yielded int) error
}

// --- Tenant Store ---

// Source names used for per-source validation error bookkeeping.
const (
	SourceWarehouse = "warehouse"
	SourceFileDrop  = "filedrop"
)

type TenantStore interface {
	GetTenantConfig(ctx context.Context, tenantID string) (*models.TenantConfig, error)
	// SetSourceValidationError caches the last validation outcome for one
	// of a tenant's sources; nil clears it.
	SetSourceValidationError(ctx context.Context, tenantID, source string, message *string) error
}

// --- Merge Writer ---

// MergeWriter applies the idempotent replace-by-range write: everything of
// (tenant, type) inside the range is superseded by the supplied set in one
// transaction. Repeating the call with the same inputs leaves the store
// unchanged.
type MergeWriter interface {
	ReplaceRange(ctx context.Context, tenantID, dataType string, r models.DateRange, records []models.RawRecord) (int, error)
}

// --- Job Client ---

// JobClient enqueues job-execution messages. The message is a pointer to the
// Job row, not a copy of its mutable state.
type JobClient interface {
	EnqueueIngestionJob(ctx context.Context, job *models.Job) error
	Close() error
}
