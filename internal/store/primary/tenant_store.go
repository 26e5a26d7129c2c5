package primary

import (
	"context"
	"errors"
	"fmt"

	"tributary/internal/models"
	"tributary/internal/store"

	"github.com/jackc/pgx/v5"
)

// --- Tenant Store Implementation ---

// GetTenantConfig loads a tenant's source/credential bundle. Inactive tenants
// are still returned; the resolver decides how to treat them.
func (s *StoreImpl) GetTenantConfig(ctx context.Context, tenantID string) (*models.TenantConfig, error) {
	query := `
		SELECT tenant_id, active,
		       warehouse_enabled, warehouse_base_url, warehouse_api_key,
		       filedrop_enabled, filedrop_bucket, filedrop_prefix, filedrop_region,
		       warehouse_last_error, filedrop_last_error,
		       created_at, updated_at
		FROM tenants
		WHERE tenant_id = $1`

	cfg := &models.TenantConfig{}
	err := s.db.QueryRow(ctx, query, tenantID).Scan(
		&cfg.TenantID,
		&cfg.Active,
		&cfg.Warehouse.Enabled,
		&cfg.Warehouse.BaseURL,
		&cfg.Warehouse.APIKey,
		&cfg.FileDrop.Enabled,
		&cfg.FileDrop.Bucket,
		&cfg.FileDrop.Prefix,
		&cfg.FileDrop.Region,
		&cfg.WarehouseLastError,
		&cfg.FileDropLastError,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get tenant config %s: %w", tenantID, err)
	}
	return cfg, nil
}

// SetSourceValidationError caches the latest validation outcome for one of a
// tenant's sources so operators can see why ingestion keeps failing for it.
func (s *StoreImpl) SetSourceValidationError(ctx context.Context, tenantID, source string, message *string) error {
	var column string
	switch source {
	case store.SourceWarehouse:
		column = "warehouse_last_error"
	case store.SourceFileDrop:
		column = "filedrop_last_error"
	default:
		return fmt.Errorf("unknown source %q", source)
	}

	query := fmt.Sprintf(`UPDATE tenants SET %s = $2, updated_at = now() WHERE tenant_id = $1`, column)
	cmdTag, err := s.db.Exec(ctx, query, tenantID, message)
	if err != nil {
		return fmt.Errorf("set %s validation error for tenant %s: %w", source, tenantID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("tenant %s: %w", tenantID, store.ErrNotFound)
	}
	return nil
}

// Ensure StoreImpl satisfies the TenantStore interface
var _ store.TenantStore = (*StoreImpl)(nil)
