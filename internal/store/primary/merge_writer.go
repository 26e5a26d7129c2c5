package primary

import (
	"context"
	"fmt"

	"tributary/internal/models"
	"tributary/internal/store"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

// --- Merge Writer Implementation ---

// ReplaceRange supersedes all stored records of (tenant, type) whose date
// falls in the range with the supplied set, inside a single transaction.
// Either the whole replace commits or nothing does, and repeating the call
// with the same inputs leaves the table in the same state.
func (s *StoreImpl) ReplaceRange(ctx context.Context, tenantID, dataType string, r models.DateRange, records []models.RawRecord) (int, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin replace tx for tenant %s type %s: %w", tenantID, dataType, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		DELETE FROM tenant_records
		WHERE tenant_id = $1 AND data_type = $2 AND occurred_on BETWEEN $3 AND $4`,
		tenantID, dataType, r.Start, r.End)
	if err != nil {
		return 0, fmt.Errorf("delete range for tenant %s type %s: %w", tenantID, dataType, err)
	}

	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{"tenant_records"},
		[]string{"tenant_id", "data_type", "record_key", "occurred_on", "payload"},
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			rec := records[i]
			if !r.Contains(rec.OccurredOn) {
				return nil, fmt.Errorf("record %q dated %s falls outside range %s",
					rec.Key, rec.OccurredOn.Format(models.DateLayout), r)
			}
			return []any{tenantID, dataType, rec.Key, rec.OccurredOn, rec.Payload}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copy records for tenant %s type %s: %w", tenantID, dataType, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit replace for tenant %s type %s: %w", tenantID, dataType, err)
	}

	log.WithFields(log.Fields{
		"tenant_id": tenantID,
		"data_type": dataType,
		"range":     r.String(),
		"records":   copied,
	}).Debug("Replaced record range")
	return int(copied), nil
}

// Ensure StoreImpl satisfies the MergeWriter interface
var _ store.MergeWriter = (*StoreImpl)(nil)
