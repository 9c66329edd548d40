package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const undefinedTable = "42P01"

// Postgres keeps values in a single kv_store table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps a pool and makes sure the kv_store table exists.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	const ddl = `CREATE TABLE IF NOT EXISTS kv_store (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return nil, fmt.Errorf("kv/postgres: create table: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Get returns the stored value and whether it exists.
func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.pool.QueryRow(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
			return "", false, nil
		}
		return "", false, fmt.Errorf("kv/postgres: get %s: %w", key, err)
	}
	return value, true, nil
}

const postgresUpsert = `INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, now())
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

// Set replaces the value stored under key.
func (p *Postgres) Set(ctx context.Context, key, value string) error {
	_, err := p.pool.Exec(ctx, postgresUpsert, key, value)
	if err != nil {
		return fmt.Errorf("kv/postgres: set %s: %w", key, err)
	}
	return nil
}

// Update runs fn in a transaction holding an advisory lock on key. The lock
// also covers keys that have no row yet, which SELECT ... FOR UPDATE would not.
func (p *Postgres) Update(ctx context.Context, key string, fn UpdateFunc) error {
	var fnErr error
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return fmt.Errorf("kv/postgres: update %s: lock: %w", key, err)
		}
		var current string
		exists := true
		switch err := tx.QueryRow(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&current); {
		case errors.Is(err, pgx.ErrNoRows):
			exists = false
		case err != nil:
			return fmt.Errorf("kv/postgres: update %s: read: %w", key, err)
		}
		next, err := fn(current, exists)
		if err != nil {
			fnErr = err
			return err
		}
		if _, err := tx.Exec(ctx, postgresUpsert, key, next); err != nil {
			return fmt.Errorf("kv/postgres: update %s: write: %w", key, err)
		}
		return nil
	})
	if fnErr != nil {
		if errors.Is(fnErr, ErrUnchanged) {
			return nil
		}
		return fnErr
	}
	return err
}
