// Package sqlstore persists store collections in a single key-value table through database/sql.
// It supports an embedded sqlite file and postgres through the pgx stdlib driver.
package sqlstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"regexp"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite

	"github.com/victornm/examiner/internal/store"
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

type Backend struct {
	db     *sql.DB
	driver Driver
}

// Open opens the database and creates the table when missing.
func Open(ctx context.Context, driver Driver, dsn string) (*Backend, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite"
		if dsn == "" {
			dsn = "file:examiner.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/examiner?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ensure schema: %w", err)
	}

	return &Backend{db: db, driver: driver}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS kv (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);`

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	var v string
	err := b.db.QueryRowContext(ctx, b.rebind(`SELECT value FROM kv WHERE key = $1`), key).Scan(&v)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNoValue
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get: %w", err)
	}

	return []byte(v), nil
}

func (b *Backend) Set(ctx context.Context, key string, value []byte) error {
	const stmt = `
INSERT INTO kv (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = excluded.value`

	if _, err := b.db.ExecContext(ctx, b.rebind(stmt), key, string(value)); err != nil {
		return fmt.Errorf("sqlstore: set: %w", err)
	}

	return nil
}

func (b *Backend) Del(ctx context.Context, key string) error {
	if _, err := b.db.ExecContext(ctx, b.rebind(`DELETE FROM kv WHERE key = $1`), key); err != nil {
		return fmt.Errorf("sqlstore: del: %w", err)
	}

	return nil
}

// rebind rewrites $n placeholders to ? for sqlite.
func (b *Backend) rebind(q string) string {
	if b.driver != DriverSQLite {
		return q
	}

	return placeholder.ReplaceAllString(q, "?")
}

var placeholder = regexp.MustCompile(`\$[0-9]+`)

func (b *Backend) Driver() Driver { return b.driver }

func (b *Backend) Close() error {
	return b.db.Close()
}
