package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"content-gateway/internal/domain"
	"content-gateway/internal/infra/kv"
	"content-gateway/internal/infra/queue"
	"content-gateway/internal/usecase/home"
	"content-gateway/internal/usecase/translate"
)

type stubContent struct{ pages map[int]int }

func (s stubContent) FetchByCategory(_ context.Context, q domain.CategoryQuery) ([]domain.Post, error) {
	posts := make([]domain.Post, s.pages[q.Page])
	for i := range posts {
		posts[i] = domain.Post{ID: fmt.Sprintf("cat-%d-%d", q.CategoryID, q.Page*100+i), Title: "t"}
	}
	return posts, nil
}

func (stubContent) FetchMulti(context.Context, []int, int, *time.Time) ([]domain.Post, error) {
	return []domain.Post{{ID: "multi-5", SourceID: 5, Title: "Hello", Categories: []int{32}}}, nil
}

func (stubContent) Search(context.Context, string, int) ([]domain.Post, error) { return nil, nil }

func (stubContent) FetchPostDetail(context.Context, string, int) (domain.Post, error) {
	return domain.Post{}, nil
}

func (stubContent) Categories(context.Context, int) ([]domain.Category, error) {
	return []domain.Category{{ID: 32, Name: "Community", Slug: "community", Count: 7}}, nil
}

type stubTranslator struct{}

func (stubTranslator) Translate(_ context.Context, texts []string, target, _ string) ([]string, error) {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = target + ":" + t
	}
	return out, nil
}

// keepOpen не даёт команде закрыть очередь, из которой читает тест.
type keepOpen struct{ *queue.MemoryChatQueue }

func (keepOpen) Close() error { return nil }

func newTestEnv() *env {
	store := kv.NewMemory()
	defs := []domain.SectionDef{{Key: "community", Name: "Community", CategoryID: 32}}
	content := stubContent{pages: map[int]int{1: 2, 2: 2, 3: 1}}
	return &env{
		home:      home.NewService(content, store, defs, defs),
		translate: translate.NewService(stubTranslator{}, store, "ko"),
		content:   content,
		loc:       time.UTC,
		log:       zerolog.Nop(),
	}
}

func run(t *testing.T, e *env, q *queue.MemoryChatQueue, args ...string) (string, error) {
	t.Helper()
	load := func(context.Context) (*env, func(), error) { return e, func() {}, nil }
	open := func(context.Context) (domain.ChatEventQueue, error) { return keepOpen{q}, nil }
	cmd := newRootCmd(load, open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHomeCommand(t *testing.T) {
	out, err := run(t, newTestEnv(), nil, "home")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !strings.Contains(out, "1 section(s), 1 slide(s), fresh") || !strings.Contains(out, "cat-32-5") {
		t.Fatalf("неожиданный вывод:\n%s", out)
	}
}

func TestBrowseCategoryLoadsRequestedPages(t *testing.T) {
	out, err := run(t, newTestEnv(), nil, "browse", "category", "32", "--per-page", "2", "--pages", "5")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !strings.Contains(out, "5 post(s), pages loaded: 3, more: false") {
		t.Fatalf("неожиданный вывод:\n%s", out)
	}
	if _, err := run(t, newTestEnv(), nil, "browse", "category", "x"); err == nil {
		t.Fatal("ожидали ошибку для нечислового id")
	}
}

func TestTranslateAndClearCache(t *testing.T) {
	e := newTestEnv()
	out, err := run(t, e, nil, "translate", "--target", "en", "xin", "chao")
	if err != nil || out != "en:xin\nen:chao\n" {
		t.Fatalf("неожиданный перевод %q, err=%v", out, err)
	}
	if _, err := run(t, e, nil, "translate", "xin"); err == nil {
		t.Fatal("ожидали ошибку без --target")
	}
	out, err = run(t, e, nil, "cache", "clear", "translations")
	if err != nil || !strings.Contains(out, "Cleared 2 translation(s).") {
		t.Fatalf("неожиданный вывод %q, err=%v", out, err)
	}
	if _, err := run(t, e, nil, "cache", "clear", "everything"); err == nil {
		t.Fatal("ожидали ошибку для неизвестного аргумента")
	}
}

func TestCategoriesCommand(t *testing.T) {
	out, err := run(t, newTestEnv(), nil, "categories")
	if err != nil || !strings.Contains(out, "Community") || !strings.Contains(out, "(7)") {
		t.Fatalf("неожиданный вывод %q, err=%v", out, err)
	}
}

func TestPublishMessage(t *testing.T) {
	q := queue.NewMemoryChatQueue(1)
	if _, err := run(t, nil, q, "publish-message", "--chat", "c1", "--sender", "u1", "--text", "hi"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, _, err := q.Receive(ctx)
	if err != nil || msg.ChatID != "c1" || msg.Text != "hi" || msg.CreatedAt.IsZero() {
		t.Fatalf("неожиданное событие %+v, err=%v", msg, err)
	}
}
