package tenant

import (
	"context"
	"errors"
	"testing"

	"tributary/internal/models"
	"tributary/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTenantStore serves one tenant config and records cached validation
// outcomes.
type fakeTenantStore struct {
	cfg    *models.TenantConfig
	getErr error

	cached map[string]*string
}

func (f *fakeTenantStore) GetTenantConfig(ctx context.Context, tenantID string) (*models.TenantConfig, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.cfg, nil
}

func (f *fakeTenantStore) SetSourceValidationError(ctx context.Context, tenantID, source string, message *string) error {
	if f.cached == nil {
		f.cached = make(map[string]*string)
	}
	f.cached[source] = message
	return nil
}

func validTenantConfig() *models.TenantConfig {
	return &models.TenantConfig{
		TenantID: "acme",
		Active:   true,
		Warehouse: models.WarehouseSourceConfig{
			Enabled: true,
			BaseURL: "https://warehouse.example.com",
			APIKey:  "wh-key",
		},
		FileDrop: models.FileDropSourceConfig{
			Enabled: true,
			Bucket:  "acme-drop",
			Region:  "eu-west-1",
		},
	}
}

func TestResolveReturnsValidatedConfig(t *testing.T) {
	ts := &fakeTenantStore{cfg: validTenantConfig()}
	resolver := NewResolver(ts)

	cfg, err := resolver.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.TenantID)

	// Both sources were validated and the success was cached.
	require.Contains(t, ts.cached, store.SourceWarehouse)
	require.Contains(t, ts.cached, store.SourceFileDrop)
	assert.Nil(t, ts.cached[store.SourceWarehouse])
	assert.Nil(t, ts.cached[store.SourceFileDrop])
}

func TestResolveUnknownTenant(t *testing.T) {
	ts := &fakeTenantStore{getErr: store.ErrNotFound}
	resolver := NewResolver(ts)

	_, err := resolver.Resolve(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestResolveInactiveTenant(t *testing.T) {
	cfg := validTenantConfig()
	cfg.Active = false
	resolver := NewResolver(&fakeTenantStore{cfg: cfg})

	_, err := resolver.Resolve(context.Background(), "acme")
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestResolveInvalidSourceConfigs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.TenantConfig)
	}{
		{"warehouse disabled", func(c *models.TenantConfig) { c.Warehouse.Enabled = false }},
		{"warehouse bad url", func(c *models.TenantConfig) { c.Warehouse.BaseURL = "not a url" }},
		{"warehouse ftp url", func(c *models.TenantConfig) { c.Warehouse.BaseURL = "ftp://warehouse" }},
		{"warehouse missing key", func(c *models.TenantConfig) { c.Warehouse.APIKey = "" }},
		{"filedrop disabled", func(c *models.TenantConfig) { c.FileDrop.Enabled = false }},
		{"filedrop missing bucket", func(c *models.TenantConfig) { c.FileDrop.Bucket = "" }},
		{"filedrop missing region", func(c *models.TenantConfig) { c.FileDrop.Region = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTenantConfig()
			tc.mutate(cfg)
			resolver := NewResolver(&fakeTenantStore{cfg: cfg})

			_, err := resolver.Resolve(context.Background(), "acme")
			assert.ErrorIs(t, err, ErrConfigInvalid)
		})
	}
}

func TestResolveCachesValidationFailure(t *testing.T) {
	cfg := validTenantConfig()
	cfg.Warehouse.APIKey = ""
	ts := &fakeTenantStore{cfg: cfg}
	resolver := NewResolver(ts)

	_, err := resolver.Resolve(context.Background(), "acme", store.SourceWarehouse)
	require.ErrorIs(t, err, ErrConfigInvalid)

	require.Contains(t, ts.cached, store.SourceWarehouse)
	require.NotNil(t, ts.cached[store.SourceWarehouse])
	assert.Contains(t, *ts.cached[store.SourceWarehouse], "API key")
}

func TestResolveScopedToRequestedSources(t *testing.T) {
	// Broken filedrop config must not matter when only the warehouse is needed.
	cfg := validTenantConfig()
	cfg.FileDrop.Enabled = false
	resolver := NewResolver(&fakeTenantStore{cfg: cfg})

	_, err := resolver.Resolve(context.Background(), "acme", store.SourceWarehouse)
	assert.NoError(t, err)
}

func TestSourcesFor(t *testing.T) {
	master := []string{"users", "locations"}

	assert.Equal(t, []string{store.SourceWarehouse}, SourcesFor([]string{"orders"}, master))
	assert.Equal(t, []string{store.SourceFileDrop}, SourcesFor([]string{"users"}, master))
	assert.Equal(t,
		[]string{store.SourceWarehouse, store.SourceFileDrop},
		SourcesFor([]string{"orders", "users"}, master))
	assert.Empty(t, SourcesFor(nil, master))
}

func TestResolveTolerantOfCacheFailure(t *testing.T) {
	ts := &failingCacheStore{fakeTenantStore{cfg: validTenantConfig()}}
	resolver := NewResolver(ts)

	cfg, err := resolver.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

type failingCacheStore struct {
	fakeTenantStore
}

func (f *failingCacheStore) SetSourceValidationError(ctx context.Context, tenantID, source string, message *string) error {
	return errors.New("tenants table is on fire")
}
