// Package store defines the remote record store the pipeline reads reference
// data from and upserts purchase orders into, and opens the configured
// backend.
//
// Every backend exposes the same two calls: fetch all rows of a table and
// upsert one row keyed by a uniqueness constraint. Calls are single and
// synchronous; nothing is retried.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/procure/internal/config"
	"github.com/JonMunkholm/procure/internal/store/postgres"
	"github.com/JonMunkholm/procure/internal/store/postgrest"
	"github.com/JonMunkholm/procure/internal/store/sqlite"
)

// Record is one row as returned by a backend. Numbers decode as
// json.Number or int64/float64 depending on the backend; frame.Normalize
// maps them onto frame values.
type Record = map[string]any

// Store is the collaborator every pipeline component receives explicitly.
type Store interface {
	// Fetch returns every row of table.
	Fetch(ctx context.Context, table string) ([]Record, error)
	// Upsert inserts rec into table, updating the existing row when the
	// onConflict column already holds rec's value. It returns the stored row.
	Upsert(ctx context.Context, table string, rec Record, onConflict string) (Record, error)
}

// Backend is a Store with a lifecycle.
type Backend interface {
	Store
	Ping(ctx context.Context) error
	Close() error
}

var ErrUnknownBackend = errors.New("unknown store backend")

// Open connects to the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Backend, error) {
	switch cfg.Backend {
	case "postgrest":
		return postgrest.New(postgrest.Options{
			BaseURL:  cfg.URL,
			APIKey:   cfg.Key,
			Timeout:  cfg.Timeout,
			PageSize: cfg.PageSize,
		}), nil
	case "postgres":
		return postgres.Open(ctx, postgres.Options{
			URL:             cfg.DatabaseURL,
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
			MaxConnIdleTime: cfg.MaxConnIdleTime,
			QueryTimeout:    cfg.Timeout,
		})
	case "sqlite":
		return sqlite.Open(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
