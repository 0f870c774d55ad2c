package push

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"content-gateway/internal/domain"
)

// FCM отправляет уведомления через Firebase Cloud Messaging HTTP v1.
type FCM struct {
	endpoint    string
	projectID   string
	accessToken string
	transport   transport
}

var _ domain.PushSender = (*FCM)(nil)

// NewFCM создаёт отправителя. accessToken — OAuth2 bearer сервисного аккаунта.
func NewFCM(endpoint, projectID, accessToken string, opts ...Option) (*FCM, error) {
	if projectID == "" {
		return nil, fmt.Errorf("fcm: project id is required")
	}
	if endpoint == "" {
		endpoint = "https://fcm.googleapis.com/v1"
	}
	return &FCM{
		endpoint:    strings.TrimRight(endpoint, "/"),
		projectID:   projectID,
		accessToken: accessToken,
		transport:   newTransport("fcm", opts),
	}, nil
}

// Channel возвращает имя канала.
func (f *FCM) Channel() string { return "fcm" }

type fcmRequest struct {
	Message fcmMessage `json:"message"`
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmResponse struct {
	Name string `json:"name"`
}

// Send отправляет уведомление на FCM-токен получателя.
func (f *FCM) Send(ctx context.Context, r domain.Recipient, msg domain.PushMessage) error {
	if r.FCMToken == "" {
		return domain.ErrNoPushToken
	}
	endpoint := fmt.Sprintf("%s/projects/%s/messages:send", f.endpoint, url.PathEscape(f.projectID))
	headers := map[string]string{}
	if f.accessToken != "" {
		headers["Authorization"] = "Bearer " + f.accessToken
	}
	body := fcmRequest{Message: fcmMessage{
		Token:        r.FCMToken,
		Notification: fcmNotification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
	}}
	var resp fcmResponse
	if err := f.transport.postJSON(ctx, endpoint, headers, body, &resp); err != nil {
		return err
	}
	if resp.Name == "" {
		return fmt.Errorf("fcm: empty message name in response")
	}
	return nil
}
