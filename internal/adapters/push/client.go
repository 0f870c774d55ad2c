// Package push отправляет уведомления через FCM HTTP v1 и Expo Push API.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"content-gateway/internal/domain"
	"content-gateway/internal/infra/metrics"
)

const defaultTimeout = 10 * time.Second

// Option настраивает HTTP-часть отправителя.
type Option func(*transport)

// WithHTTPClient подменяет http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(t *transport) {
		if client != nil {
			t.http = client
		}
	}
}

// WithTimeout задаёт таймаут одной отправки.
func WithTimeout(timeout time.Duration) Option {
	return func(t *transport) {
		if timeout > 0 {
			t.http.Timeout = timeout
		}
	}
}

type transport struct {
	http      *http.Client
	component string
}

func newTransport(component string, opts []Option) transport {
	t := transport{http: &http.Client{Timeout: defaultTimeout}, component: component}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// postJSON отправляет body и декодирует ответ в out. Каждому запросу
// присваивается X-Request-Id для сквозной трассировки.
func (t transport) postJSON(ctx context.Context, endpoint string, headers map[string]string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", t.component, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", t.component, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := t.http.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest(t.component, "send", t.component, start, err)
		return &domain.NetworkError{Op: t.component + " send", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil && resp.StatusCode >= 300 {
		err = &domain.NetworkError{Op: t.component + " send", Status: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(data)))}
	}
	metrics.ObserveNetworkRequest(t.component, "send", t.component, start, err)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", t.component, err)
	}
	return nil
}
