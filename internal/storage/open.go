// Package storage opens the configured storefront store.
package storage

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/sqlite"
)

// Open connects to the driver named in cfg and makes sure the schema exists.
func Open(ctx context.Context, cfg config.Config) (orders.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &postgres.Store{DB: pool}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
