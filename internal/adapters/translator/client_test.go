package translator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"content-gateway/internal/domain"
)

func TestTranslateBatchKeepsOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("ожидали POST, получили %s", r.Method)
		}
		q := r.URL.Query()
		if q.Get("key") != "secret" || q.Get("target") != "vi" || q.Get("source") != "ko" {
			t.Errorf("неожиданные параметры: %s", r.URL.RawQuery)
		}
		texts := q["q"]
		if len(texts) != 2 || texts[0] != "안녕" || texts[1] != "감사" {
			t.Errorf("неожиданные q: %v", texts)
		}
		_, _ = w.Write([]byte(`{"data":{"translations":[{"translatedText":"Xin chào"},{"translatedText":"Cảm ơn"}]}}`))
	}))
	defer srv.Close()

	c := NewClient("secret", srv.URL, time.Second)
	got, err := c.Translate(context.Background(), []string{"안녕", "감사"}, "vi", "ko")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if strings.Join(got, "|") != "Xin chào|Cảm ơn" {
		t.Fatalf("неожиданный перевод: %v", got)
	}
}

func TestTranslateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"API key not valid"}}`))
	}))
	defer srv.Close()

	c := NewClient("bad", srv.URL, time.Second)
	_, err := c.Translate(context.Background(), []string{"x"}, "vi", "")
	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("ожидали сетевую ошибку, получили %v", err)
	}
	if !strings.Contains(err.Error(), "API key not valid") {
		t.Fatalf("ожидали сообщение сервиса в ошибке: %v", err)
	}
}

func TestTranslateCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"translations":[{"translatedText":"one"}]}}`))
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, time.Second)
	if _, err := c.Translate(context.Background(), []string{"a", "b"}, "en", ""); err == nil {
		t.Fatalf("ожидали ошибку при несовпадении количества")
	}
}

func TestTranslateRequiresKey(t *testing.T) {
	c := NewClient("", "http://127.0.0.1:1", time.Second)
	if _, err := c.Translate(context.Background(), []string{"a"}, "en", ""); err == nil {
		t.Fatalf("ожидали ошибку без ключа")
	}
}
