// Package translator вызывает REST-сервис машинного перевода
// (формат Google Translation v2).
package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"content-gateway/internal/domain"
	"content-gateway/internal/infra/metrics"
)

const (
	defaultEndpoint = "https://translation.googleapis.com/language/translate/v2"
	defaultTimeout  = 8 * time.Second
)

// Client выполняет запросы перевода.
type Client struct {
	http     *http.Client
	endpoint string
	apiKey   string
	timeout  time.Duration
}

var _ domain.Translator = (*Client)(nil)

// NewClient создаёт клиента сервиса перевода.
func NewClient(apiKey, endpoint string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http:     &http.Client{},
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		timeout:  timeout,
	}
}

type translateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText         string `json:"translatedText"`
			DetectedSourceLanguage string `json:"detectedSourceLanguage,omitempty"`
		} `json:"translations"`
	} `json:"data"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Translate переводит texts одним запросом, порядок ответа совпадает с порядком q.
// Пустой source означает автоопределение.
func (c *Client) Translate(ctx context.Context, texts []string, target, source string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if target == "" {
		return nil, fmt.Errorf("translator: target language: %w", domain.ErrInvalidArgument)
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("translator: api key is empty")
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	for _, t := range texts {
		params.Add("q", t)
	}
	params.Set("target", target)
	if source != "" {
		params.Set("source", source)
	}
	params.Set("format", "text")

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("translator: build request: %w", err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("translator", "translate", target, start, err)
		return nil, &domain.NetworkError{Op: "translator translate", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveNetworkRequest("translator", "translate", target, start, err)
		return nil, fmt.Errorf("translator: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		netErr := &domain.NetworkError{Op: "translator translate", Status: resp.StatusCode}
		var apiErr apiErrorResponse
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
			netErr.Err = fmt.Errorf("%s", apiErr.Error.Message)
		}
		metrics.ObserveNetworkRequest("translator", "translate", target, start, netErr)
		return nil, netErr
	}

	var decoded translateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		metrics.ObserveNetworkRequest("translator", "translate", target, start, err)
		return nil, fmt.Errorf("translator: decode response: %w", err)
	}
	if len(decoded.Data.Translations) != len(texts) {
		err := fmt.Errorf("translator: expected %d translations, got %d", len(texts), len(decoded.Data.Translations))
		metrics.ObserveNetworkRequest("translator", "translate", target, start, err)
		return nil, err
	}
	metrics.ObserveNetworkRequest("translator", "translate", target, start, nil)

	out := make([]string, len(texts))
	chars := 0
	for i, tr := range decoded.Data.Translations {
		out[i] = tr.TranslatedText
		chars += len([]rune(texts[i]))
	}
	metrics.TranslatedChars.Add(float64(chars))
	return out, nil
}
