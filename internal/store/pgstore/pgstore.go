// Package pgstore persists store collections as JSONB rows in postgres through a pgx pool.
package pgstore

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/examiner/internal/store"
)

type Config struct {
	DB *pgxpool.Pool
}

type Backend struct {
	db *pgxpool.Pool
}

func New(c Config) *Backend {
	return &Backend{db: c.DB}
}

// EnsureSchema creates the records table when it does not exist.
func (b *Backend) EnsureSchema(ctx context.Context) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS records (
	key         TEXT PRIMARY KEY,
	value       JSONB NOT NULL,
	update_time TIMESTAMPTZ NOT NULL DEFAULT now()
);`

	if _, err := b.db.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("pgstore: ensure schema: %w", err)
	}

	return nil
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := b.db.QueryRow(ctx, `SELECT value FROM records WHERE key = $1;`, key).Scan(&v)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNoValue
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore: get: %w", err)
	}

	return v, nil
}

func (b *Backend) Set(ctx context.Context, key string, value []byte) error {
	const stmt = `
INSERT INTO records (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, update_time = now();`

	if _, err := b.db.Exec(ctx, stmt, key, string(value)); err != nil {
		return fmt.Errorf("pgstore: set: %w", err)
	}

	return nil
}

func (b *Backend) Del(ctx context.Context, key string) error {
	if _, err := b.db.Exec(ctx, `DELETE FROM records WHERE key = $1;`, key); err != nil {
		return fmt.Errorf("pgstore: del: %w", err)
	}

	return nil
}
