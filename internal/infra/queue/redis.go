package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"content-gateway/internal/domain"
	"content-gateway/internal/infra/metrics"
)

// RedisChatQueue реализует очередь событий чата на базе Redis lists.
type RedisChatQueue struct {
	client *redis.Client
	key    string
}

var _ domain.ChatEventQueue = (*RedisChatQueue)(nil)

// NewRedisChatQueue создаёт очередь по указанному ключу.
func NewRedisChatQueue(client *redis.Client, key string) *RedisChatQueue {
	return &RedisChatQueue{client: client, key: key}
}

// Publish кладёт событие в очередь. Пустой ID заполняется UUID.
func (q *RedisChatQueue) Publish(ctx context.Context, msg domain.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal chat message: %w", err)
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis", "publish", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push chat message: %w", err)
	}
	return nil
}

// Receive блокирующе читает событие. Подтверждение не требуется:
// BRPOP уже удалил элемент из списка.
func (q *RedisChatQueue) Receive(ctx context.Context) (domain.ChatMessage, domain.AckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.ChatMessage{}, nil, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.ChatMessage{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.ChatMessage{}, nil, err
		}
		if len(res) != 2 {
			return domain.ChatMessage{}, nil, errors.New("redis queue: unexpected response")
		}
		var msg domain.ChatMessage
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			return domain.ChatMessage{}, nil, fmt.Errorf("decode chat message: %w", err)
		}
		return msg, func() error { return nil }, nil
	}
}

// Close закрывает клиента Redis.
func (q *RedisChatQueue) Close() error {
	return q.client.Close()
}
