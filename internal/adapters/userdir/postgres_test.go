package userdir

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"content-gateway/internal/domain"
	"content-gateway/internal/infra/db"
)

// fakeRows отдаёт заранее заданные строки в порядке колонок запроса.
type fakeRows struct {
	data   [][]any
	i      int
	err    error
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.i >= len(r.data) {
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Values() ([]any, error) { return r.data[r.i-1], nil }

func (r *fakeRows) Scan(dest ...any) error {
	return scanInto(r.data[r.i-1], dest)
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(r.values, dest)
}

func scanInto(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d targets", len(values), len(dest))
	}
	for i, v := range values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *bool:
			*d = v.(bool)
		default:
			return fmt.Errorf("scan: unsupported target %T", dest[i])
		}
	}
	return nil
}

type fakeDB struct {
	rows     *fakeRows
	queryErr error
	row      fakeRow
	execErr  error

	lastSQL  string
	lastArgs []any
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastSQL, f.lastArgs = sql, args
	return pgconn.CommandTag{}, f.execErr
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.lastSQL, f.lastArgs = sql, args
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.rows, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.lastSQL, f.lastArgs = sql, args
	return f.row
}

func TestChatRecipientsMapsRows(t *testing.T) {
	rows := &fakeRows{data: [][]any{
		{"u1", "Minh", "fcm-1", "", true},
		{"u2", "", "", "ExponentPushToken[x]", false},
	}}
	fake := &fakeDB{rows: rows}
	dir := &Postgres{db: fake}

	got, err := dir.ChatRecipients(context.Background(), "chat-1")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	want := []domain.Recipient{
		{UserID: "u1", DisplayName: "Minh", FCMToken: "fcm-1", NotificationsEnabled: true},
		{UserID: "u2", ExpoPushToken: "ExponentPushToken[x]"},
	}
	if len(got) != len(want) {
		t.Fatalf("ожидали %d получателей, получили %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("получатель %d: ожидали %+v, получили %+v", i, want[i], got[i])
		}
	}
	if len(fake.lastArgs) != 1 || fake.lastArgs[0] != "chat-1" {
		t.Fatalf("неожиданные аргументы запроса: %v", fake.lastArgs)
	}
	if !rows.closed {
		t.Fatalf("строки должны быть закрыты")
	}
}

func TestChatRecipientsErrors(t *testing.T) {
	dir := &Postgres{db: &fakeDB{queryErr: errors.New("connection refused")}}
	if _, err := dir.ChatRecipients(context.Background(), "c"); err == nil || !strings.Contains(err.Error(), "query recipients") {
		t.Fatalf("ожидали ошибку запроса, получили %v", err)
	}

	dir = &Postgres{db: &fakeDB{rows: &fakeRows{err: errors.New("conn reset")}}}
	if _, err := dir.ChatRecipients(context.Background(), "c"); err == nil || !strings.Contains(err.Error(), "scan recipients") {
		t.Fatalf("ожидали ошибку чтения строк, получили %v", err)
	}

	got, err := (&Postgres{db: &fakeDB{rows: &fakeRows{}}}).ChatRecipients(context.Background(), "empty")
	if err != nil || len(got) != 0 {
		t.Fatalf("ожидали пустой список, получили %v err=%v", got, err)
	}
}

func TestDisplayName(t *testing.T) {
	dir := &Postgres{db: &fakeDB{row: fakeRow{values: []any{"Minh"}}}}
	name, err := dir.DisplayName(context.Background(), "u1")
	if err != nil || name != "Minh" {
		t.Fatalf("ожидали Minh, получили %q err=%v", name, err)
	}

	dir = &Postgres{db: &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}}
	if _, err := dir.DisplayName(context.Background(), "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ожидали ErrNotFound, получили %v", err)
	}

	dir = &Postgres{db: &fakeDB{row: fakeRow{err: errors.New("timeout")}}}
	if _, err := dir.DisplayName(context.Background(), "u1"); err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ожидали ошибку БД, получили %v", err)
	}
}

func TestMigrateExecutesSchema(t *testing.T) {
	fake := &fakeDB{}
	if err := (&Postgres{db: fake}).Migrate(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !strings.Contains(fake.lastSQL, "CREATE TABLE IF NOT EXISTS chat_members") {
		t.Fatalf("ожидали схему, получили %q", fake.lastSQL)
	}
	fake.execErr = errors.New("permission denied")
	if err := (&Postgres{db: fake}).Migrate(context.Background()); err == nil {
		t.Fatalf("ожидали ошибку миграции")
	}
}

// TestPostgresRoundTrip проверяет SQL на настоящей БД, если задан PG_TEST_DSN.
func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("PG_TEST_DSN")
	if dsn == "" {
		t.Skip("PG_TEST_DSN не задан")
	}
	ctx := context.Background()
	pool, err := db.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("подключение: %v", err)
	}
	defer pool.Close()

	dir := NewPostgres(pool)
	if err := dir.Migrate(ctx); err != nil {
		t.Fatalf("миграция: %v", err)
	}
	chatID := "test-chat-roundtrip"
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM chat_members WHERE chat_id = $1`, chatID)
		_, _ = pool.Exec(context.Background(), `DELETE FROM app_users WHERE id IN ('rt-a', 'rt-b')`)
	})
	if _, err := pool.Exec(ctx, `
		INSERT INTO app_users (id, display_name, fcm_token, notifications_enabled)
		VALUES ('rt-a', 'Alice', 'tok-a', TRUE), ('rt-b', 'Bob', '', FALSE)
		ON CONFLICT (id) DO NOTHING`); err != nil {
		t.Fatalf("вставка пользователей: %v", err)
	}
	if _, err := pool.Exec(ctx, `
		INSERT INTO chat_members (chat_id, user_id, joined_at)
		VALUES ($1, 'rt-a', now() - interval '1 minute'), ($1, 'rt-b', now())
		ON CONFLICT DO NOTHING`, chatID); err != nil {
		t.Fatalf("вставка участников: %v", err)
	}

	recipients, err := dir.ChatRecipients(ctx, chatID)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(recipients) != 2 || recipients[0].UserID != "rt-a" || !recipients[0].NotificationsEnabled || recipients[1].NotificationsEnabled {
		t.Fatalf("неожиданные получатели: %+v", recipients)
	}
	if name, err := dir.DisplayName(ctx, "rt-b"); err != nil || name != "Bob" {
		t.Fatalf("ожидали Bob, получили %q err=%v", name, err)
	}
	if _, err := dir.DisplayName(ctx, "rt-missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ожидали ErrNotFound, получили %v", err)
	}
}
