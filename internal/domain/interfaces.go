package domain

import (
	"context"
	"time"
)

// ContentSource выполняет запросы к CMS.
type ContentSource interface {
	FetchByCategory(ctx context.Context, q CategoryQuery) ([]Post, error)
	FetchMulti(ctx context.Context, categoryIDs []int, perPage int, date *time.Time) ([]Post, error)
	Search(ctx context.Context, query string, page int) ([]Post, error)
	FetchPostDetail(ctx context.Context, baseURL string, postID int) (Post, error)
	Categories(ctx context.Context, perPage int) ([]Category, error)
}

// BoardFeed читает RSS-ленту доски объявлений. Ошибки не возвращает:
// при сбое отдаёт пустой список.
type BoardFeed interface {
	FetchBoardFeed(ctx context.Context, page, pageSize int) []Post
}

// Translator вызывает внешний сервис машинного перевода.
type Translator interface {
	Translate(ctx context.Context, texts []string, target, source string) ([]string, error)
}

// KVStore — общее строковое хранилище ключ-значение.
// Get возвращает found=false для отсутствующего ключа без ошибки.
type KVStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	DeleteMany(ctx context.Context, keys []string) error
	Close() error
}

// RecipientDirectory читает участников чатов и их настройки.
type RecipientDirectory interface {
	ChatRecipients(ctx context.Context, chatID string) ([]Recipient, error)
	DisplayName(ctx context.Context, userID string) (string, error)
}

// PushSender отправляет уведомление через один канал доставки.
type PushSender interface {
	Channel() string
	Send(ctx context.Context, r Recipient, msg PushMessage) error
}
