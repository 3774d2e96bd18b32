// Package sqlite is an embedded store backend for local runs and demos. Open
// bootstraps the reference tables, the purchase order table and the two
// reporting views under their default names.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/procure/internal/store/sqlgen"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
  id INTEGER PRIMARY KEY,
  product_code TEXT NOT NULL UNIQUE,
  product_name TEXT,
  category TEXT,
  subcategory TEXT,
  unit_price NUMERIC
);

CREATE TABLE IF NOT EXISTS suppliers (
  id INTEGER PRIMARY KEY,
  supplier_tax_id TEXT NOT NULL UNIQUE,
  supplier_name TEXT
);

CREATE TABLE IF NOT EXISTS cost_centers (
  id INTEGER PRIMARY KEY,
  cost_center_code TEXT NOT NULL UNIQUE,
  cost_center_name TEXT
);

CREATE TABLE IF NOT EXISTS purchase_orders (
  id INTEGER PRIMARY KEY,
  business_code TEXT NOT NULL UNIQUE,
  buyer_user TEXT,
  purchase_type TEXT,
  quantity NUMERIC,
  taxes NUMERIC,
  status INTEGER,
  order_date TEXT,
  creation_date TEXT,
  approval_date TEXT,
  receipt_date TEXT,
  product_id INTEGER NOT NULL REFERENCES products(id),
  supplier_id INTEGER NOT NULL REFERENCES suppliers(id),
  cost_center_id INTEGER NOT NULL REFERENCES cost_centers(id)
);

CREATE VIEW IF NOT EXISTS purchase_categories_view AS
SELECT po.business_code, po.quantity, po.creation_date, p.category, p.subcategory
FROM purchase_orders po
JOIN products p ON p.id = po.product_id;

CREATE VIEW IF NOT EXISTS purchase_analysis_view AS
SELECT po.business_code, po.order_date, po.quantity, p.category,
       po.quantity * p.unit_price AS total_price
FROM purchase_orders po
JOIN products p ON p.id = po.product_id;
`

// Store runs fetches and upserts against a database/sql handle.
type Store struct {
	db *sql.DB
}

// Open creates the database file if needed, enables WAL and foreign keys and
// bootstraps the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	// foreign_keys is per connection, so it rides on the DSN
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing handle without touching the schema.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates any missing tables and views.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate sqlite schema: %w", err)
	}
	return nil
}

func (s *Store) Fetch(ctx context.Context, table string) ([]map[string]any, error) {
	query, err := sqlgen.SelectAll(table)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", table, err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", table, err)
	}
	return out, nil
}

func (s *Store) Upsert(ctx context.Context, table string, rec map[string]any, onConflict string) (map[string]any, error) {
	stmt, err := sqlgen.Upsert(table, rec, onConflict, sqlgen.Question, "*")
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, stmt.Query, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("upsert %s: %w", table, err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("upsert %s: %w", table, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("upsert %s: no row returned", table)
	}
	return out[0], nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				rec[col] = string(b)
				continue
			}
			rec[col] = values[i]
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
