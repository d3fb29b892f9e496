package source

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/mbeckert/sitepulse/internal/source/clickhouse"
	"github.com/mbeckert/sitepulse/internal/source/memory"
	"github.com/mbeckert/sitepulse/internal/source/sqlite"
)

// Config holds data-source configuration.
type Config struct {
	// Backend selects the source backend: "memory", "sqlite" or "clickhouse"
	Backend string

	// SQLite-specific config
	SQLitePath string

	// ClickHouse-specific config
	ClickHouseAddr     string
	ClickHouseDatabase string
}

// DefaultConfig returns default source configuration.
func DefaultConfig() Config {
	return Config{
		Backend:            "memory",
		SQLitePath:         "./data/sitepulse.db",
		ClickHouseAddr:     "localhost:9000",
		ClickHouseDatabase: "default",
	}
}

// New creates a data source based on configuration.
func New(ctx context.Context, cfg Config) (Source, error) {
	switch cfg.Backend {
	case "memory":
		log.Printf("Using seeded in-memory data source")
		return memory.NewSeeded(), nil

	case "sqlite":
		log.Printf("Using SQLite data source: %s", cfg.SQLitePath)
		return sqlite.New(ctx, cfg.SQLitePath)

	case "clickhouse":
		log.Printf("Using ClickHouse data source: %s", cfg.ClickHouseAddr)

		chCfg := clickhouse.DefaultConfig()
		chCfg.Addr = cfg.ClickHouseAddr
		chCfg.Database = cfg.ClickHouseDatabase

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		src, err := clickhouse.New(ctx, chCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("creating ClickHouse source: %w", err)
		}
		return src, nil

	default:
		return nil, fmt.Errorf("unknown source backend: %s (supported: memory, sqlite, clickhouse)", cfg.Backend)
	}
}
