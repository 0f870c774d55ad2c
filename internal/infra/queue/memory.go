package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"content-gateway/internal/domain"
)

// ErrClosed возвращается после Close.
var ErrClosed = errors.New("queue closed")

// MemoryChatQueue — очередь в памяти процесса для локального запуска и тестов.
type MemoryChatQueue struct {
	ch        chan domain.ChatMessage
	closeOnce sync.Once
	done      chan struct{}
}

var _ domain.ChatEventQueue = (*MemoryChatQueue)(nil)

// NewMemoryChatQueue создаёт очередь с буфером size.
func NewMemoryChatQueue(size int) *MemoryChatQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryChatQueue{ch: make(chan domain.ChatMessage, size), done: make(chan struct{})}
}

// Publish кладёт событие в буфер, блокируясь при переполнении.
func (q *MemoryChatQueue) Publish(ctx context.Context, msg domain.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	select {
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- msg:
		return nil
	}
}

// Receive ждёт событие.
func (q *MemoryChatQueue) Receive(ctx context.Context) (domain.ChatMessage, domain.AckFunc, error) {
	select {
	case <-q.done:
		return domain.ChatMessage{}, nil, ErrClosed
	case <-ctx.Done():
		return domain.ChatMessage{}, nil, ctx.Err()
	case msg := <-q.ch:
		return msg, func() error { return nil }, nil
	}
}

// Close останавливает очередь.
func (q *MemoryChatQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}
