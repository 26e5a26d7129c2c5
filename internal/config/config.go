package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Redis struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Worker struct {
		Concurrency int            `mapstructure:"concurrency"`
		Queues      map[string]int `mapstructure:"queues"`
		// MaxRetry is the queue-level redelivery budget per message.
		// Exhausted messages land in the archived (poison) set.
		MaxRetry       int           `mapstructure:"max_retry"`
		RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	} `mapstructure:"worker"`

	Ingestion struct {
		// TypeConcurrency bounds how many data types of one job are
		// extracted and merged at the same time.
		TypeConcurrency int `mapstructure:"type_concurrency"`
		// JobTimeout is the wall-clock deadline for a whole job execution.
		JobTimeout time.Duration `mapstructure:"job_timeout"`
		// CancelGrace is how long cancelled extractions get to unwind
		// after the deadline fires.
		CancelGrace time.Duration `mapstructure:"cancel_grace"`
		// FetchAttempts is the in-process retry budget for transient
		// extraction failures, per data type per execution.
		FetchAttempts   int           `mapstructure:"fetch_attempts"`
		FetchRetryDelay time.Duration `mapstructure:"fetch_retry_delay"`
		// MasterDataTypes lists the type tags served by the file-drop
		// source; everything else is pulled from the warehouse.
		MasterDataTypes []string `mapstructure:"master_data_types"`
		// PageSize is the warehouse extraction page size.
		PageSize int `mapstructure:"page_size"`
	} `mapstructure:"ingestion"`

	Server struct {
		Address string `mapstructure:"address"`
		Port    string `mapstructure:"port"`
	} `mapstructure:"server"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.BindEnv("database.dsn", "TRIBUTARY_DATABASE_DSN")
	viper.BindEnv("redis.address", "TRIBUTARY_REDIS_ADDRESS")
	viper.BindEnv("redis.password", "TRIBUTARY_REDIS_PASSWORD")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env vars carry it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults() {
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("worker.concurrency", 10)
	viper.SetDefault("worker.queues", map[string]int{"ingestion": 5, "default": 1})
	viper.SetDefault("worker.max_retry", 3)
	viper.SetDefault("worker.retry_base_delay", "30s")

	viper.SetDefault("ingestion.type_concurrency", 4)
	viper.SetDefault("ingestion.job_timeout", "30m")
	viper.SetDefault("ingestion.cancel_grace", "10s")
	viper.SetDefault("ingestion.fetch_attempts", 3)
	viper.SetDefault("ingestion.fetch_retry_delay", "200ms")
	viper.SetDefault("ingestion.master_data_types", []string{"users", "locations"})
	viper.SetDefault("ingestion.page_size", 500)

	viper.SetDefault("server.address", "localhost")
	viper.SetDefault("server.port", "8080")
}
