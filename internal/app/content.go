// Package app собирает сервисы контента из конфигурации для cmd/api и cmd/contentctl.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"content-gateway/internal/adapters/board"
	"content-gateway/internal/adapters/cms"
	"content-gateway/internal/adapters/translator"
	"content-gateway/internal/domain"
	"content-gateway/internal/infra/config"
	"content-gateway/internal/infra/kv"
	applog "content-gateway/internal/infra/log"
	"content-gateway/internal/usecase/home"
	"content-gateway/internal/usecase/translate"
)

// Content — собранные клиенты и сервисы контента.
type Content struct {
	CMS       *cms.Client
	Board     domain.BoardFeed
	Home      *home.Service
	Translate *translate.Service
	Store     domain.KVStore
	Location  *time.Location

	closeStore func()
}

// Close освобождает хранилище.
func (c *Content) Close() {
	if c.closeStore != nil {
		c.closeStore()
	}
}

// NewContent создаёт хранилище, клиенты CMS, доски и перевода и сервисы поверх них.
func NewContent(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*Content, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	sections, err := config.LoadSections(cfg.SectionsFile)
	if err != nil {
		return nil, err
	}

	cmsClient, err := cms.New(cfg.CMS.BaseURL,
		cms.WithTimeout(cfg.CMS.Timeout),
		cms.WithLocation(loc),
		cms.WithLogger(applog.Component(logger, "cms")),
	)
	if err != nil {
		return nil, err
	}

	var boardFeed domain.BoardFeed = emptyBoard{}
	if cfg.Board.FeedURL != "" {
		bc, err := board.New(cfg.Board.FeedURL,
			board.WithTimeout(cfg.Board.Timeout),
			board.WithLocation(loc),
			board.WithLogger(applog.Component(logger, "board")),
		)
		if err != nil {
			return nil, err
		}
		boardFeed = bc
	} else {
		logger.Warn().Msg("app: BOARD_FEED_URL не задан, лента доски будет пустой")
	}

	store, closeStore, err := kv.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("app: kv store: %w", err)
	}

	tr := translator.NewClient(cfg.Translate.APIKey, cfg.Translate.Endpoint, cfg.Translate.Timeout)

	return &Content{
		CMS:   cmsClient,
		Board: boardFeed,
		Home: home.NewService(cmsClient, store, sections.Home, sections.News,
			home.WithLocation(loc),
			home.WithLogger(applog.Component(logger, "home")),
		),
		Translate: translate.NewService(tr, store, cfg.Translate.BaseLang,
			translate.WithLogger(applog.Component(logger, "translate")),
		),
		Store:      store,
		Location:   loc,
		closeStore: closeStore,
	}, nil
}

type emptyBoard struct{}

func (emptyBoard) FetchBoardFeed(context.Context, int, int) []domain.Post { return []domain.Post{} }
