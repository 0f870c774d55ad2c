package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"content-gateway/internal/adapters/htmltext"
	"content-gateway/internal/domain"
	"content-gateway/internal/infra/metrics"
)

const (
	bodyLimit     = 120
	fallbackTitle = "New message"
	photoBody     = "📷 Photo"
)

// Report — итог рассылки по одному сообщению.
type Report struct {
	Recipients int
	Delivered  int
	Failed     int
	Skipped    int
}

// Service рассылает push-уведомления участникам чата о новом сообщении.
type Service struct {
	directory domain.RecipientDirectory
	senders   []domain.PushSender
	log       zerolog.Logger
}

// NewService создаёт сервис рассылки.
func NewService(directory domain.RecipientDirectory, senders []domain.PushSender, logger zerolog.Logger) *Service {
	return &Service{directory: directory, senders: senders, log: logger}
}

// HandleMessage отправляет уведомление каждому участнику чата, кроме
// отправителя и тех, кто отключил уведомления. Ошибка канала не прерывает
// рассылку; повторов нет.
func (s *Service) HandleMessage(ctx context.Context, msg domain.ChatMessage) (Report, error) {
	if msg.ChatID == "" {
		return Report{}, fmt.Errorf("notify: chat id: %w", domain.ErrInvalidArgument)
	}
	recipients, err := s.directory.ChatRecipients(ctx, msg.ChatID)
	if err != nil {
		return Report{}, fmt.Errorf("notify: recipients of %s: %w", msg.ChatID, err)
	}

	push := s.buildMessage(ctx, msg)
	var report Report
	for _, r := range recipients {
		if r.UserID == msg.SenderID {
			continue
		}
		report.Recipients++
		if !r.NotificationsEnabled {
			report.Skipped++
			continue
		}
		for _, sender := range s.senders {
			err := sender.Send(ctx, r, push)
			if errors.Is(err, domain.ErrNoPushToken) {
				continue
			}
			metrics.ObservePushSend(sender.Channel(), err)
			logEvent := s.log.Debug()
			if err != nil {
				report.Failed++
				logEvent = s.log.Warn().Err(err)
			} else {
				report.Delivered++
			}
			logEvent.Str("channel", sender.Channel()).Str("chat_id", msg.ChatID).Str("message_id", msg.ID).Str("user_id", r.UserID).Msg("notify: отправка уведомления")
		}
	}
	return report, nil
}

func (s *Service) buildMessage(ctx context.Context, msg domain.ChatMessage) domain.PushMessage {
	title := fallbackTitle
	if msg.SenderID != "" {
		name, err := s.directory.DisplayName(ctx, msg.SenderID)
		switch {
		case err == nil && strings.TrimSpace(name) != "":
			title = strings.TrimSpace(name)
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			s.log.Warn().Err(err).Str("user_id", msg.SenderID).Msg("notify: имя отправителя недоступно")
		}
	}
	body := htmltext.Truncate(strings.TrimSpace(msg.Text), bodyLimit)
	if body == "" && msg.ImageURL != "" {
		body = photoBody
	}
	return domain.PushMessage{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":       "chat_message",
			"chat_id":    msg.ChatID,
			"message_id": msg.ID,
		},
	}
}
