package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire format for job date ranges (date-granular, inclusive).
const DateLayout = "2006-01-02"

// DateRange is an inclusive [Start, End] range at day granularity.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange parses a range from its wire representation and validates it.
func NewDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	r := DateRange{Start: s, End: e}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// Validate rejects ranges whose end precedes their start.
func (r DateRange) Validate() error {
	if r.End.Before(r.Start) {
		return fmt.Errorf("%w: end date %s before start date %s",
			ErrInvalidDateRange, r.End.Format(DateLayout), r.Start.Format(DateLayout))
	}
	return nil
}

// Contains reports whether the given day falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	day := t.Truncate(24 * time.Hour)
	return !day.Before(r.Start) && !day.After(r.End)
}

// Days returns the number of days covered by the range.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

// Job is one ingestion request and its execution record. It is created in
// status queued by submission and mutated only by the worker executing it.
type Job struct {
	ID        uuid.UUID `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"tenant_id"`
	DataTypes []string  `db:"data_types" json:"data_types"`
	Range     DateRange `db:"date_range" json:"date_range"`
	Status    JobStatus `db:"status" json:"status"`

	// RecordsProcessed maps data type -> rows merged; only populated for
	// types whose extract+merge finished.
	RecordsProcessed map[string]int `db:"records_processed" json:"records_processed"`
	// Progress maps data type -> last extraction count, updated while the
	// job is processing for observability.
	Progress map[string]int `db:"progress" json:"progress"`
	// SkippedRecords maps data type -> malformed records dropped during
	// extraction. Skips never fail a type.
	SkippedRecords map[string]int `db:"skipped_records" json:"skipped_records"`

	ErrorMessage *string `db:"error_message" json:"error_message,omitempty"`

	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	StartedAt   *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// RawRecord is one extracted record, normalized across sources. Key is the
// record's natural key within (tenant, data type); OccurredOn is the day the
// record belongs to and must fall inside the job's range.
type RawRecord struct {
	Key        string          `json:"key"`
	OccurredOn time.Time       `json:"occurred_on"`
	Payload    json.RawMessage `json:"payload"`
}

// WarehouseSourceConfig is a tenant's connection bundle for the analytical
// event warehouse.
type WarehouseSourceConfig struct {
	Enabled bool   `db:"warehouse_enabled"`
	BaseURL string `db:"warehouse_base_url"`
	APIKey  string `db:"warehouse_api_key"`
}

// FileDropSourceConfig is a tenant's bundle for the file-transfer master-data
// source (an S3-compatible drop bucket).
type FileDropSourceConfig struct {
	Enabled bool   `db:"filedrop_enabled"`
	Bucket  string `db:"filedrop_bucket"`
	Prefix  string `db:"filedrop_prefix"`
	Region  string `db:"filedrop_region"`
}

// TenantConfig is the per-tenant credential/config bundle. It is read-only
// from the orchestrator's perspective.
type TenantConfig struct {
	TenantID  string                `db:"tenant_id"`
	Active    bool                  `db:"active"`
	Warehouse WarehouseSourceConfig
	FileDrop  FileDropSourceConfig

	// Last validation error per source, cached by the resolver so pollers
	// and operators can see why a source is unusable.
	WarehouseLastError *string `db:"warehouse_last_error"`
	FileDropLastError  *string `db:"filedrop_last_error"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
