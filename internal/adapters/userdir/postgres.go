// Package userdir читает участников чатов и их настройки уведомлений из Postgres.
package userdir

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"content-gateway/internal/domain"
	"content-gateway/internal/infra/metrics"
)

//go:embed schema.sql
var schema string

// querier — подмножество pgxpool.Pool, которым пользуется адаптер.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres реализует domain.RecipientDirectory на pgxpool.
type Postgres struct {
	db querier
}

var _ domain.RecipientDirectory = (*Postgres)(nil)

// NewPostgres создаёт адаптер.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{db: pool}
}

// Migrate создаёт таблицы, если их нет.
func (p *Postgres) Migrate(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	if _, err := p.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("userdir: migrate: %w", err)
	}
	return nil
}

// ChatRecipients возвращает участников чата в порядке вступления.
func (p *Postgres) ChatRecipients(ctx context.Context, chatID string) ([]domain.Recipient, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	start := time.Now()
	rows, err := p.db.Query(ctx, `
		SELECT u.id, u.display_name, u.fcm_token, u.expo_push_token, u.notifications_enabled
		FROM chat_members m
		JOIN app_users u ON u.id = m.user_id
		WHERE m.chat_id = $1
		ORDER BY m.joined_at, u.id`, chatID)
	if err != nil {
		metrics.ObserveNetworkRequest("postgres", "chat_recipients", "chat_members", start, err)
		return nil, fmt.Errorf("userdir: query recipients: %w", err)
	}
	recipients, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Recipient, error) {
		var r domain.Recipient
		err := row.Scan(&r.UserID, &r.DisplayName, &r.FCMToken, &r.ExpoPushToken, &r.NotificationsEnabled)
		return r, err
	})
	metrics.ObserveNetworkRequest("postgres", "chat_recipients", "chat_members", start, err)
	if err != nil {
		return nil, fmt.Errorf("userdir: scan recipients: %w", err)
	}
	return recipients, nil
}

// DisplayName возвращает имя пользователя или ErrNotFound.
func (p *Postgres) DisplayName(ctx context.Context, userID string) (string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	var name string
	err := p.db.QueryRow(ctx, `SELECT display_name FROM app_users WHERE id = $1`, userID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("userdir: display name: %w", err)
	}
	return name, nil
}

// withTimeout ограничивает запрос 5 секундами, если у ctx нет дедлайна.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}
