package kv

import (
	"context"
	"fmt"

	"content-gateway/internal/domain"
	"content-gateway/internal/infra/config"
	"content-gateway/internal/infra/db"
)

// Open выбирает реализацию хранилища по KV_BACKEND.
func Open(ctx context.Context, cfg config.AppConfig) (domain.KVStore, func(), error) {
	switch cfg.KV.Backend {
	case "memory":
		return NewMemory(), func() {}, nil
	case "sqlite", "":
		store, err := OpenSQLite(cfg.KV.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case "redis":
		store, err := DialRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case "postgres":
		pool, err := db.Connect(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, err
		}
		store, err := NewPostgres(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("kv: unknown backend %q (valid: memory, sqlite, redis, postgres)", cfg.KV.Backend)
	}
}
