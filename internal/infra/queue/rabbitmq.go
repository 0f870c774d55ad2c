package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"content-gateway/internal/domain"
	"content-gateway/internal/infra/metrics"
)

const prefetchCount = 16

// RabbitChatQueue реализует очередь событий чата поверх AMQP 0-9-1.
type RabbitChatQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
}

var _ domain.ChatEventQueue = (*RabbitChatQueue)(nil)

// NewRabbitChatQueue подключается к брокеру и объявляет durable-очередь.
func NewRabbitChatQueue(amqpURL, queue string) (*RabbitChatQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &RabbitChatQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Publish публикует событие в очередь через default exchange.
func (q *RabbitChatQueue) Publish(ctx context.Context, msg domain.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal chat message: %w", err)
	}
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    time.Now(),
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish chat message: %w", err)
	}
	return nil
}

// Receive ждёт следующее событие. Нераспознанное сообщение отбрасывается
// без возврата в очередь.
func (q *RabbitChatQueue) Receive(ctx context.Context) (domain.ChatMessage, domain.AckFunc, error) {
	deliveries, err := q.consume()
	if err != nil {
		return domain.ChatMessage{}, nil, err
	}
	select {
	case <-ctx.Done():
		return domain.ChatMessage{}, nil, ctx.Err()
	case d, ok := <-deliveries:
		if !ok {
			return domain.ChatMessage{}, nil, errors.New("rabbitmq: delivery channel closed")
		}
		var msg domain.ChatMessage
		if err := json.Unmarshal(d.Body, &msg); err != nil {
			_ = d.Nack(false, false)
			return domain.ChatMessage{}, nil, fmt.Errorf("decode chat message: %w", err)
		}
		return msg, func() error { return d.Ack(false) }, nil
	}
}

func (q *RabbitChatQueue) consume() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	deliveries, err := q.ch.Consume(q.queue, "content-gateway-notifier-"+uuid.NewString()[:8], false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", q.queue, err)
	}
	q.deliveries = deliveries
	return deliveries, nil
}

// Close закрывает канал и соединение.
func (q *RabbitChatQueue) Close() error {
	chErr := q.ch.Close()
	connErr := q.conn.Close()
	return errors.Join(chErr, connErr)
}
