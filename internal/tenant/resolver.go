package tenant

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"tributary/internal/models"
	"tributary/internal/store"

	log "github.com/sirupsen/logrus"
)

// Both failure kinds are fatal for the job that triggered resolution: a retry
// cannot make a missing tenant or bad credentials valid.
var (
	ErrConfigNotFound = errors.New("tenant config not found")
	ErrConfigInvalid  = errors.New("tenant config invalid")
)

// Resolver returns validated per-tenant connection bundles for the upstream
// sources and caches the latest validation outcome per source on the tenant
// record.
type Resolver struct {
	tenants store.TenantStore
}

func NewResolver(tenants store.TenantStore) *Resolver {
	return &Resolver{tenants: tenants}
}

// Resolve loads and validates the tenant's config bundle. sources names the
// upstream sources the caller needs (store.SourceWarehouse,
// store.SourceFileDrop); with none given, both are validated. Each required
// source must be enabled and pass a syntactic credential check.
func (r *Resolver) Resolve(ctx context.Context, tenantID string, sources ...string) (*models.TenantConfig, error) {
	cfg, err := r.tenants.GetTenantConfig(ctx, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("tenant %s: %w", tenantID, ErrConfigNotFound)
		}
		return nil, fmt.Errorf("resolve tenant %s: %w", tenantID, err)
	}
	if !cfg.Active {
		return nil, fmt.Errorf("tenant %s is not active: %w", tenantID, ErrConfigNotFound)
	}

	if len(sources) == 0 {
		sources = []string{store.SourceWarehouse, store.SourceFileDrop}
	}

	for _, source := range sources {
		verr := r.validateSource(cfg, source)
		r.cacheValidation(ctx, tenantID, source, verr)
		if verr != nil {
			return nil, fmt.Errorf("tenant %s source %s: %v: %w", tenantID, source, verr, ErrConfigInvalid)
		}
	}
	return cfg, nil
}

func (r *Resolver) validateSource(cfg *models.TenantConfig, source string) error {
	switch source {
	case store.SourceWarehouse:
		w := cfg.Warehouse
		if !w.Enabled {
			return errors.New("warehouse source is disabled")
		}
		u, err := url.Parse(w.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("warehouse base URL %q is not a valid http(s) URL", w.BaseURL)
		}
		if w.APIKey == "" {
			return errors.New("warehouse API key is empty")
		}
	case store.SourceFileDrop:
		f := cfg.FileDrop
		if !f.Enabled {
			return errors.New("filedrop source is disabled")
		}
		if f.Bucket == "" {
			return errors.New("filedrop bucket is empty")
		}
		if f.Region == "" {
			return errors.New("filedrop region is empty")
		}
	default:
		return fmt.Errorf("unknown source %q", source)
	}
	return nil
}

// cacheValidation persists the outcome on the tenant record. Best effort: a
// bookkeeping failure must not change the resolution result.
func (r *Resolver) cacheValidation(ctx context.Context, tenantID, source string, verr error) {
	var message *string
	if verr != nil {
		msg := verr.Error()
		message = &msg
	}
	if err := r.tenants.SetSourceValidationError(ctx, tenantID, source, message); err != nil {
		log.WithFields(log.Fields{
			"tenant_id": tenantID,
			"source":    source,
		}).WithError(err).Warn("Failed to cache source validation result")
	}
}

// SourcesFor maps the requested data types onto the upstream sources that
// serve them, master-data types coming from the file drop and everything else
// from the warehouse.
func SourcesFor(dataTypes, masterDataTypes []string) []string {
	master := make(map[string]bool, len(masterDataTypes))
	for _, t := range masterDataTypes {
		master[t] = true
	}
	var needWarehouse, needFileDrop bool
	for _, t := range dataTypes {
		if master[t] {
			needFileDrop = true
		} else {
			needWarehouse = true
		}
	}
	var sources []string
	if needWarehouse {
		sources = append(sources, store.SourceWarehouse)
	}
	if needFileDrop {
		sources = append(sources, store.SourceFileDrop)
	}
	return sources
}
