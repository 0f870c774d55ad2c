// Package feed ведёт постраничную ленту одной поверхности списка.
package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"content-gateway/internal/domain"
	"content-gateway/internal/infra/metrics"
)

// Loader загружает страницу page размера pageSize (нумерация с 1).
type Loader func(ctx context.Context, page, pageSize int) ([]domain.Post, error)

// Pager накапливает страницы ленты. Каждый Refresh начинает новую эпоху:
// ответы, запрошенные в предыдущей эпохе, отбрасываются с ErrStale.
type Pager struct {
	name     string
	load     Loader
	pageSize int
	log      zerolog.Logger

	mu      sync.Mutex
	epoch   uint64
	page    int
	posts   []domain.Post
	seen    map[string]struct{}
	hasMore bool
	loading bool
}

// NewPager создаёт ленту. name используется в логах и метриках.
func NewPager(name string, pageSize int, load Loader, logger zerolog.Logger) (*Pager, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("feed: page size %d: %w", pageSize, domain.ErrInvalidArgument)
	}
	if load == nil {
		return nil, fmt.Errorf("feed: loader is nil: %w", domain.ErrInvalidArgument)
	}
	return &Pager{
		name:     name,
		load:     load,
		pageSize: pageSize,
		log:      logger,
		seen:     map[string]struct{}{},
		hasMore:  true,
	}, nil
}

// Refresh сбрасывает ленту и загружает первую страницу. Пока он идёт,
// LoadMore не выполняет запросов.
func (p *Pager) Refresh(ctx context.Context) (domain.PageResult, error) {
	p.mu.Lock()
	p.epoch++
	epoch := p.epoch
	p.loading = true
	p.mu.Unlock()

	posts, err := p.load(ctx, 1, p.pageSize)

	p.mu.Lock()
	defer p.mu.Unlock()
	if epoch != p.epoch {
		return p.snapshotLocked(), domain.ErrStale
	}
	p.loading = false
	if err != nil {
		p.degradedLocked("refresh", 1, err)
		return p.snapshotLocked(), nil
	}
	p.page = 1
	p.posts = nil
	p.seen = map[string]struct{}{}
	p.appendLocked(posts)
	p.hasMore = domain.HasMore(len(posts), p.pageSize)
	return p.snapshotLocked(), nil
}

// LoadMore загружает следующую страницу, если она может существовать.
// Вызов во время другой загрузки или Refresh возвращает текущее состояние.
func (p *Pager) LoadMore(ctx context.Context) (domain.PageResult, error) {
	p.mu.Lock()
	if !p.hasMore || p.loading {
		res := p.snapshotLocked()
		p.mu.Unlock()
		return res, nil
	}
	p.loading = true
	epoch := p.epoch
	next := p.page + 1
	p.mu.Unlock()

	posts, err := p.load(ctx, next, p.pageSize)

	p.mu.Lock()
	defer p.mu.Unlock()
	if epoch != p.epoch {
		return p.snapshotLocked(), domain.ErrStale
	}
	p.loading = false
	if err != nil {
		p.degradedLocked("load_more", next, err)
		return p.snapshotLocked(), nil
	}
	p.page = next
	p.appendLocked(posts)
	p.hasMore = domain.HasMore(len(posts), p.pageSize)
	return p.snapshotLocked(), nil
}

// Snapshot возвращает копию накопленной ленты.
func (p *Pager) Snapshot() domain.PageResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Page возвращает номер последней загруженной страницы.
func (p *Pager) Page() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

func (p *Pager) appendLocked(posts []domain.Post) {
	for _, post := range posts {
		if _, dup := p.seen[post.ID]; dup {
			continue
		}
		p.seen[post.ID] = struct{}{}
		p.posts = append(p.posts, post)
	}
}

func (p *Pager) snapshotLocked() domain.PageResult {
	posts := make([]domain.Post, len(p.posts))
	copy(posts, p.posts)
	return domain.PageResult{Posts: posts, HasMore: p.hasMore}
}

func (p *Pager) degradedLocked(op string, page int, err error) {
	p.log.Warn().Err(err).Str("component", "feed").Str("feed", p.name).Str("op", op).Int("page", page).Msg("feed: страница не загружена")
	metrics.IncDegraded("feed_"+p.name, op)
}
