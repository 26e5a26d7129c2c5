package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Database.DSN = "postgres://localhost/tributary_test"
	cfg.Redis.Address = "localhost:6379"
	cfg.Worker.Concurrency = 10
	cfg.Worker.MaxRetry = 3
	cfg.Worker.Queues = map[string]int{"ingestion": 5, "default": 1}
	cfg.Ingestion.TypeConcurrency = 4
	cfg.Ingestion.JobTimeout = 30 * time.Minute
	cfg.Ingestion.CancelGrace = 10 * time.Second
	cfg.Ingestion.FetchAttempts = 3
	cfg.Ingestion.PageSize = 500
	return cfg
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejectsMissingFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing dsn", func(c *Config) { c.Database.DSN = "" }},
		{"missing redis", func(c *Config) { c.Redis.Address = "" }},
		{"zero concurrency", func(c *Config) { c.Worker.Concurrency = 0 }},
		{"negative max retry", func(c *Config) { c.Worker.MaxRetry = -1 }},
		{"bad queue priority", func(c *Config) { c.Worker.Queues = map[string]int{"ingestion": 0} }},
		{"zero type concurrency", func(c *Config) { c.Ingestion.TypeConcurrency = 0 }},
		{"zero job timeout", func(c *Config) { c.Ingestion.JobTimeout = 0 }},
		{"negative cancel grace", func(c *Config) { c.Ingestion.CancelGrace = -time.Second }},
		{"zero fetch attempts", func(c *Config) { c.Ingestion.FetchAttempts = 0 }},
		{"zero page size", func(c *Config) { c.Ingestion.PageSize = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("TRIBUTARY_DATABASE_DSN", "postgres://localhost/tributary_test")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/tributary_test", cfg.Database.DSN)
	assert.Equal(t, 4, cfg.Ingestion.TypeConcurrency)
	assert.Equal(t, 30*time.Minute, cfg.Ingestion.JobTimeout)
	assert.Equal(t, 3, cfg.Ingestion.FetchAttempts)
	assert.Equal(t, []string{"users", "locations"}, cfg.Ingestion.MasterDataTypes)
	assert.Equal(t, 500, cfg.Ingestion.PageSize)
	assert.Equal(t, 3, cfg.Worker.MaxRetry)
	require.NoError(t, cfg.Validate())
}
