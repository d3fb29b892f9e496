// Package config loads runtime configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the full runtime configuration for the sitepulse server.
type Config struct {
	// APIAddr is the listen address for the REST API.
	APIAddr string `env:"SITEPULSE_API_ADDR" envDefault:":8080"`

	// OTLP receiver listen addresses for log ingestion.
	GRPCAddr string `env:"SITEPULSE_OTLP_GRPC_ADDR" envDefault:":4317"`
	HTTPAddr string `env:"SITEPULSE_OTLP_HTTP_ADDR" envDefault:":4318"`

	// SourceBackend selects the analytics source: memory, sqlite, clickhouse.
	SourceBackend string `env:"SITEPULSE_SOURCE_BACKEND" envDefault:"memory"`

	SQLitePath         string `env:"SITEPULSE_SQLITE_PATH" envDefault:"sitepulse.db"`
	ClickHouseAddr     string `env:"SITEPULSE_CLICKHOUSE_ADDR" envDefault:"localhost:9000"`
	ClickHouseDatabase string `env:"SITEPULSE_CLICKHOUSE_DATABASE" envDefault:"sitepulse"`

	// ThresholdsFile optionally points at a YAML file tuning insight rules.
	ThresholdsFile string `env:"SITEPULSE_THRESHOLDS_FILE"`

	// CollectTimeout bounds one live snapshot collection.
	CollectTimeout time.Duration `env:"SITEPULSE_COLLECT_TIMEOUT" envDefault:"5s"`

	// LiteMaxAge is the freshness window of the lightweight snapshot cache.
	LiteMaxAge time.Duration `env:"SITEPULSE_LITE_MAX_AGE" envDefault:"1m"`

	// LogWindow and LogLimit shape the issue list embedded in snapshots.
	LogWindow time.Duration `env:"SITEPULSE_LOG_WINDOW" envDefault:"24h"`
	LogLimit  int           `env:"SITEPULSE_LOG_LIMIT" envDefault:"20"`
}

// Load parses the configuration from the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
