package main

import (
	"context"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"content-gateway/internal/adapters/rssout"
	"content-gateway/internal/app"
	"content-gateway/internal/infra/config"
	httpinfra "content-gateway/internal/infra/http"
	applog "content-gateway/internal/infra/log"
	"content-gateway/internal/infra/metrics"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	content, err := app.NewContent(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось собрать сервисы")
	}
	defer content.Close()

	if cfg.AdminToken == "" {
		logger.Warn().Msg("api: ADMIN_TOKEN не задан, очистка кэша по HTTP отключена")
	}

	srv := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	api := &httpinfra.API{
		Home:      content.Home,
		Translate: content.Translate,
		Content:   content.CMS,
		Board:     content.Board,
		Location:  content.Location,
		FeedMeta: rssout.Meta{
			Title:       "News",
			Link:        cfg.CMS.BaseURL,
			Description: "Daily news digest",
		},
		Log: logger.With().Str("component", "api").Logger(),
	}
	api.Register(srv.Router, cfg.AdminToken)

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	go func() {
		if err := srv.Start(":" + strconv.Itoa(cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("api: сервер остановлен")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: ошибка остановки сервера")
	}
}
