package primary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"tributary/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StoreImpl implements store.JobStore, store.TenantStore and store.MergeWriter
// against PostgreSQL. One pool serves all tenants; every query is scoped by
// tenant_id, so no cross-tenant locking is needed.
type StoreImpl struct {
	db *pgxpool.Pool
}

// NewStore creates the PostgreSQL store and verifies connectivity.
func NewStore(ctx context.Context, dsn string) (*StoreImpl, error) {
	if dsn == "" {
		return nil, errors.New("database DSN cannot be empty")
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database DSN: %w", err)
	}

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &StoreImpl{db: dbpool}, nil
}

// Ping checks the database connection.
func (s *StoreImpl) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection pool.
func (s *StoreImpl) Close() {
	s.db.Close()
}

// --- Helper Functions ---

// scanJob scans one ingestion_jobs row. Column order must match jobColumns.
func scanJob(row pgx.Row, dest *models.Job) error {
	var (
		status       string
		processedRaw []byte
		progressRaw  []byte
		skippedRaw   []byte
	)
	err := row.Scan(
		&dest.ID,
		&dest.TenantID,
		&dest.DataTypes,
		&dest.Range.Start,
		&dest.Range.End,
		&status,
		&processedRaw,
		&progressRaw,
		&skippedRaw,
		&dest.ErrorMessage,
		&dest.CreatedAt,
		&dest.StartedAt,
		&dest.CompletedAt,
	)
	if err != nil {
		return err
	}

	dest.Status, err = models.ParseJobStatus(status)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(processedRaw, &dest.RecordsProcessed); err != nil {
		return fmt.Errorf("decode records_processed: %w", err)
	}
	if err := json.Unmarshal(progressRaw, &dest.Progress); err != nil {
		return fmt.Errorf("decode progress: %w", err)
	}
	if err := json.Unmarshal(skippedRaw, &dest.SkippedRecords); err != nil {
		return fmt.Errorf("decode skipped_records: %w", err)
	}
	return nil
}

const jobColumns = `id, tenant_id, data_types, range_start, range_end, status,
	records_processed, progress, skipped_records, error_message,
	created_at, started_at, completed_at`
