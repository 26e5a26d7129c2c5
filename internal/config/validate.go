package config

import (
	"errors"
	"fmt"
)

// Validate checks the fields every process needs before wiring stores and
// queues. Surface-specific requirements (e.g. server port) are checked by the
// command that needs them.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Redis.Address == "" {
		return errors.New("redis.address is required")
	}

	if c.Worker.Concurrency <= 0 {
		return errors.New("worker.concurrency must be a positive integer")
	}
	if c.Worker.MaxRetry < 0 {
		return errors.New("worker.max_retry cannot be negative")
	}
	for name, priority := range c.Worker.Queues {
		if name == "" {
			return errors.New("worker.queues contains an empty queue name")
		}
		if priority <= 0 {
			return fmt.Errorf("worker.queues[%s] priority must be positive", name)
		}
	}

	if c.Ingestion.TypeConcurrency <= 0 {
		return errors.New("ingestion.type_concurrency must be a positive integer")
	}
	if c.Ingestion.JobTimeout <= 0 {
		return errors.New("ingestion.job_timeout must be positive")
	}
	if c.Ingestion.CancelGrace < 0 {
		return errors.New("ingestion.cancel_grace cannot be negative")
	}
	if c.Ingestion.FetchAttempts <= 0 {
		return errors.New("ingestion.fetch_attempts must be a positive integer")
	}
	if c.Ingestion.PageSize <= 0 {
		return errors.New("ingestion.page_size must be a positive integer")
	}
	return nil
}
