package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"content-gateway/internal/app"
	"content-gateway/internal/domain"
	"content-gateway/internal/infra/config"
	applog "content-gateway/internal/infra/log"
	"content-gateway/internal/infra/queue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd(loadEnv, openQueue).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func loadEnv(ctx context.Context) (*env, func(), error) {
	cfg, err := config.Parse()
	if err != nil {
		return nil, nil, err
	}
	logger := applog.NewLogger(cfg.AppEnv)
	content, err := app.NewContent(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return &env{
		home:          content.Home,
		translate:     content.Translate,
		content:       content.CMS,
		board:         content.Board,
		loc:           content.Location,
		boardPageSize: cfg.Board.PageSize,
		log:           logger,
	}, content.Close, nil
}

func openQueue(ctx context.Context) (domain.ChatEventQueue, error) {
	cfg, err := config.Parse()
	if err != nil {
		return nil, err
	}
	return queue.Open(ctx, cfg)
}
