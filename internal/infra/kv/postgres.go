package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"content-gateway/internal/infra/metrics"
)

// Postgres хранит ключи в таблице kv_store через pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres создаёт таблицу при необходимости.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS kv_store (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	if err != nil {
		return nil, fmt.Errorf("postgres kv schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()
	var value string
	err := p.pool.QueryRow(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "kv_get", "kv_store", start, nil)
		return "", false, nil
	}
	metrics.ObserveNetworkRequest("postgres", "kv_get", "kv_store", start, err)
	if err != nil {
		return "", false, fmt.Errorf("postgres kv get %s: %w", key, err)
	}
	return value, true, nil
}

func (p *Postgres) Set(ctx context.Context, key, value string) error {
	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
`, key, value)
	metrics.ObserveNetworkRequest("postgres", "kv_set", "kv_store", start, err)
	if err != nil {
		return fmt.Errorf("postgres kv set %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM kv_store WHERE key = $1`, key)
	return err
}

func (p *Postgres) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT key FROM kv_store WHERE starts_with(key, $1) ORDER BY key`, prefix)
	if err != nil {
		return nil, fmt.Errorf("postgres kv keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres kv keys: %w", err)
	}
	return keys, nil
}

func (p *Postgres) DeleteMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := p.pool.Exec(ctx, `DELETE FROM kv_store WHERE key = ANY($1)`, keys)
	return err
}

// Close не закрывает пул: им владеет вызывающий код.
func (p *Postgres) Close() error { return nil }
