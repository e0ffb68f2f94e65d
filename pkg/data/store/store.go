// Package store opens the configured order store backend.
package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ava-labs/orderfill-indexer/pkg/clickhouse"
	"github.com/ava-labs/orderfill-indexer/pkg/data"
	chrepo "github.com/ava-labs/orderfill-indexer/pkg/data/clickhouse/orderrepo"
	sqliterepo "github.com/ava-labs/orderfill-indexer/pkg/data/sqlite/orderrepo"
)

const (
	BackendSQLite     = "sqlite"
	BackendClickHouse = "clickhouse"
)

// Config selects and configures a backend.
type Config struct {
	Backend    string
	SQLitePath string
	ClickHouse clickhouse.Config
}

// Validate checks the backend name.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite database path is required")
		}
	case BackendClickHouse:
		if len(c.ClickHouse.Hosts) == 0 {
			return fmt.Errorf("at least one clickhouse host is required")
		}
	default:
		return fmt.Errorf("unknown store %q, want %s or %s", c.Backend, BackendSQLite, BackendClickHouse)
	}
	return nil
}

// Open connects to the backend and makes sure its tables exist.
func Open(ctx context.Context, cfg Config, log *zap.SugaredLogger) (data.OrderRepository, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendClickHouse:
		client, err := clickhouse.New(cfg.ClickHouse, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create ClickHouse client: %w", err)
		}
		repo, err := chrepo.NewRepository(ctx, client, cfg.ClickHouse.Database, cfg.ClickHouse.OrdersTable, cfg.ClickHouse.RawTable)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to create ClickHouse order repository: %w", err)
		}
		log.Infow("order store opened", "backend", cfg.Backend, "database", cfg.ClickHouse.Database,
			"ordersTable", cfg.ClickHouse.OrdersTable)
		return repo, nil
	default:
		repo, err := sqliterepo.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Infow("order store opened", "backend", cfg.Backend, "path", cfg.SQLitePath)
		return repo, nil
	}
}
