package domain

import (
	"context"
	"time"
)

// ChatMessage — событие создания сообщения в чате.
type ChatMessage struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatEventQueue — очередь событий о новых сообщениях.
type ChatEventQueue interface {
	Publish(ctx context.Context, msg ChatMessage) error
	Receive(ctx context.Context) (ChatMessage, AckFunc, error)
	Close() error
}

// AckFunc подтверждает обработку события. Повторов нет: событие
// подтверждается независимо от результата отправки.
type AckFunc func() error
