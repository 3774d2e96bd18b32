// Package postgres is a store backend talking to PostgreSQL directly through
// a pgx connection pool. Rows travel as row_to_json text so numbers decode
// the same way they do from the REST backend.
package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/procure/internal/store/sqlgen"
)

// Options configures the pool.
type Options struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	QueryTimeout    time.Duration
}

// Store runs fetches and upserts against a pgx pool.
type Store struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// Open parses the URL, applies pool limits, connects and pings.
func Open(ctx context.Context, opts Options) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = int32(opts.MinConns)
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool, timeout: opts.QueryTimeout}, nil
}

func (s *Store) Fetch(ctx context.Context, table string) ([]map[string]any, error) {
	if _, err := sqlgen.Ident(table); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT row_to_json(t) FROM %s t", table))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", table, err)
	}
	raw, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", table, err)
	}

	out := make([]map[string]any, 0, len(raw))
	for _, b := range raw {
		rec, err := decodeRow(b)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", table, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) Upsert(ctx context.Context, table string, rec map[string]any, onConflict string) (map[string]any, error) {
	stmt, err := sqlgen.Upsert(table, rec, onConflict, sqlgen.Dollar, "row_to_json(t)")
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var raw []byte
	if err := s.pool.QueryRow(ctx, stmt.Query, stmt.Args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("upsert %s: no row returned", table)
		}
		return nil, fmt.Errorf("upsert %s: %w", table, err)
	}
	return decodeRow(raw)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func decodeRow(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var rec map[string]any
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return rec, nil
}
