package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"content-gateway/internal/domain"
	"content-gateway/internal/infra/config"
)

// Open создаёт очередь событий чата по QUEUE_BACKEND.
func Open(ctx context.Context, cfg config.AppConfig) (domain.ChatEventQueue, error) {
	switch strings.ToLower(cfg.Queue.Backend) {
	case "rabbitmq", "":
		return NewRabbitChatQueue(cfg.Queue.RabbitURL, cfg.Queue.ChatQueue)
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("queue: REDIS_ADDR is empty")
		}
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("queue: ping redis: %w", err)
		}
		return NewRedisChatQueue(client, cfg.Queue.ChatQueue), nil
	case "memory":
		return NewMemoryChatQueue(0), nil
	default:
		return nil, fmt.Errorf("queue: unknown backend %q", cfg.Queue.Backend)
	}
}
