package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"content-gateway/internal/adapters/push"
	"content-gateway/internal/adapters/userdir"
	"content-gateway/internal/domain"
	"content-gateway/internal/infra/config"
	"content-gateway/internal/infra/db"
	applog "content-gateway/internal/infra/log"
	"content-gateway/internal/infra/metrics"
	"content-gateway/internal/infra/queue"
	"content-gateway/internal/usecase/notify"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	pool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("notifier: нет подключения к БД")
	}
	defer pool.Close()

	directory := userdir.NewPostgres(pool)
	if err := directory.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("notifier: не удалось применить схему")
	}

	var senders []domain.PushSender
	if cfg.Push.FCMProjectID != "" {
		fcm, err := push.NewFCM(cfg.Push.FCMEndpoint, cfg.Push.FCMProjectID, cfg.Push.FCMAccessToken, push.WithTimeout(cfg.Push.Timeout))
		if err != nil {
			logger.Fatal().Err(err).Msg("notifier: не удалось создать FCM клиента")
		}
		senders = append(senders, fcm)
	}
	senders = append(senders, push.NewExpo(cfg.Push.ExpoURL, cfg.Push.ExpoAccessToken, push.WithTimeout(cfg.Push.Timeout)))

	chatQueue, err := queue.Open(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("notifier: не удалось инициализировать очередь")
	}
	defer chatQueue.Close()

	service := notify.NewService(directory, senders, logger.With().Str("component", "notify").Logger())

	logger.Info().Int("senders", len(senders)).Str("queue", cfg.Queue.Backend).Msg("notifier: запуск обработки очереди")
	service.Run(ctx, chatQueue)
	logger.Info().Msg("notifier: остановлен")
}
