package push

import (
	"context"
	"fmt"

	"content-gateway/internal/domain"
)

// Expo отправляет уведомления через Expo Push API и проверяет тикет.
type Expo struct {
	url         string
	accessToken string
	transport   transport
}

var _ domain.PushSender = (*Expo)(nil)

// NewExpo создаёт отправителя.
func NewExpo(pushURL, accessToken string, opts ...Option) *Expo {
	if pushURL == "" {
		pushURL = "https://exp.host/--/api/v2/push/send"
	}
	return &Expo{url: pushURL, accessToken: accessToken, transport: newTransport("expo", opts)}
}

// Channel возвращает имя канала.
func (e *Expo) Channel() string { return "expo" }

type expoMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound,omitempty"`
}

type expoTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	Message string `json:"message"`
	Details struct {
		Error string `json:"error"`
	} `json:"details"`
}

type expoResponse struct {
	Data []expoTicket `json:"data"`
}

// Send отправляет уведомление на Expo-токен получателя. Тикет со статусом
// error считается неудачной отправкой.
func (e *Expo) Send(ctx context.Context, r domain.Recipient, msg domain.PushMessage) error {
	if r.ExpoPushToken == "" {
		return domain.ErrNoPushToken
	}
	headers := map[string]string{}
	if e.accessToken != "" {
		headers["Authorization"] = "Bearer " + e.accessToken
	}
	body := []expoMessage{{
		To:    r.ExpoPushToken,
		Title: msg.Title,
		Body:  msg.Body,
		Data:  msg.Data,
		Sound: "default",
	}}
	var resp expoResponse
	if err := e.transport.postJSON(ctx, e.url, headers, body, &resp); err != nil {
		return err
	}
	if len(resp.Data) != 1 {
		return fmt.Errorf("expo: expected 1 ticket, got %d", len(resp.Data))
	}
	if t := resp.Data[0]; t.Status != "ok" {
		return fmt.Errorf("expo: ticket %s: %s (%s)", t.Status, t.Message, t.Details.Error)
	}
	return nil
}
