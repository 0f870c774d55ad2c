package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"content-gateway/internal/infra/metrics"
)

// Redis реализует domain.KVStore через Redis. Значения пишутся без TTL:
// сроки годности проверяет вызывающая сторона по timestamp в значении.
type Redis struct {
	client *redis.Client
}

// NewRedis создаёт хранилище поверх готового клиента.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// DialRedis подключается по адресу и проверяет соединение.
func DialRedis(ctx context.Context, addr string) (*Redis, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis: REDIS_ADDR is empty")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return NewRedis(client), nil
}

// Get возвращает значение.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveNetworkRequest("redis", "get", "kv", start, nil)
		return "", false, nil
	}
	metrics.ObserveNetworkRequest("redis", "get", "kv", start, err)
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set задаёт значение.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	start := time.Now()
	err := r.client.Set(ctx, key, value, 0).Err()
	metrics.ObserveNetworkRequest("redis", "set", "kv", start, err)
	return err
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Keys обходит пространство ключей через SCAN, не блокируя сервер.
func (r *Redis) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return keys, nil
}

func (r *Redis) DeleteMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
