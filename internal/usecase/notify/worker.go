package notify

import (
	"context"
	"errors"
	"time"

	"content-gateway/internal/domain"
)

// errorBackoff — пауза после ошибки чтения очереди.
var errorBackoff = time.Second

// Run читает события из очереди до отмены ctx. Каждое событие
// подтверждается после рассылки независимо от её результата.
func (s *Service) Run(ctx context.Context, queue domain.ChatEventQueue) {
	for {
		msg, ack, err := queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			s.log.Error().Err(err).Msg("notifier: ошибка чтения очереди")
			select {
			case <-ctx.Done():
				return
			case <-time.After(errorBackoff):
			}
			continue
		}

		msgLog := s.log.With().Str("message_id", msg.ID).Str("chat_id", msg.ChatID).Logger()
		report, err := s.HandleMessage(ctx, msg)
		if err != nil {
			msgLog.Error().Err(err).Msg("notifier: рассылка не выполнена")
		} else {
			msgLog.Info().
				Int("recipients", report.Recipients).
				Int("delivered", report.Delivered).
				Int("failed", report.Failed).
				Int("skipped", report.Skipped).
				Msg("notifier: сообщение обработано")
		}
		if err := ack(); err != nil {
			msgLog.Error().Err(err).Msg("notifier: не удалось подтвердить событие")
		}
	}
}
