package home

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"content-gateway/internal/domain"
	"content-gateway/internal/infra/metrics"
)

const (
	// TTL — время жизни снимка главной и новостей.
	TTL = 5 * time.Minute
	// SectionLimit — максимум постов в секции.
	SectionLimit = 4

	maxPerPage     = 100
	homeKey        = "home:snapshot"
	newsKeyPrefix  = "news:snapshot:"
	homeKeyPrefix  = "home:"
	newsKeysPrefix = "news:"
)

// Result — данные экрана и сведения об их происхождении.
type Result struct {
	domain.HomeData
	FromCache bool      `json:"from_cache"`
	Stale     bool      `json:"stale"`
	FetchedAt time.Time `json:"fetched_at"`
}

// NewsQuery — параметры запроса новостей. Nil Date означает «сегодня» в зоне CMS.
type NewsQuery struct {
	Date  *time.Time
	Force bool
}

// Service собирает секции главной и новостей одним запросом к CMS
// и хранит снимок в KV-хранилище.
type Service struct {
	source domain.ContentSource
	store  domain.KVStore
	home   []domain.SectionDef
	news   []domain.SectionDef
	loc    *time.Location
	now    func() time.Time
	log    zerolog.Logger
}

// Option настраивает сервис.
type Option func(*Service)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation задаёт часовой пояс CMS, в котором считается «сегодня».
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.log = logger }
}

// NewService создаёт сервис агрегации.
func NewService(source domain.ContentSource, store domain.KVStore, home, news []domain.SectionDef, opts ...Option) *Service {
	s := &Service{
		source: source,
		store:  store,
		home:   home,
		news:   news,
		loc:    time.UTC,
		now:    time.Now,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Home возвращает секции главной. Свежий снимок отдаётся без сетевого
// запроса; при сбое источника отдаётся снимок любой давности или пустой
// результат. Ошибку вызывающему не возвращает.
func (s *Service) Home(ctx context.Context, force bool) Result {
	return s.load(ctx, "home", homeKey, s.home, nil, force)
}

// News возвращает новостные секции за день. Если день не задан явно и
// сегодня пусто, один раз пробует вчерашний день.
func (s *Service) News(ctx context.Context, q NewsQuery) Result {
	if q.Date != nil {
		day := dayStart(q.Date.In(s.loc))
		return s.load(ctx, "news", newsKey(day), s.news, &day, q.Force)
	}
	today := dayStart(s.now().In(s.loc))
	res := s.load(ctx, "news", newsKey(today), s.news, &today, q.Force)
	if len(res.Sections) > 0 {
		return res
	}
	yesterday := today.AddDate(0, 0, -1)
	prev := s.load(ctx, "news", newsKey(yesterday), s.news, &yesterday, q.Force)
	if len(prev.Sections) == 0 {
		return res
	}
	prev.ShowingYesterday = true
	return prev
}

// ClearSnapshots удаляет все снимки главной и новостей.
func (s *Service) ClearSnapshots(ctx context.Context) (int, error) {
	var keys []string
	for _, prefix := range []string{homeKeyPrefix, newsKeysPrefix} {
		found, err := s.store.Keys(ctx, prefix)
		if err != nil {
			return 0, fmt.Errorf("home: list %s keys: %w", prefix, err)
		}
		keys = append(keys, found...)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := s.store.DeleteMany(ctx, keys); err != nil {
		return 0, fmt.Errorf("home: delete snapshots: %w", err)
	}
	return len(keys), nil
}

func (s *Service) load(ctx context.Context, op, key string, defs []domain.SectionDef, date *time.Time, force bool) Result {
	now := s.now()
	snap, cached := s.readSnapshot(ctx, key)
	if cached && !force && snap.Fresh(now, TTL) {
		metrics.ObserveCacheLookup(op, "hit")
		return Result{HomeData: snap.Data, FromCache: true, FetchedAt: time.UnixMilli(snap.Timestamp)}
	}

	data, err := s.fetch(ctx, defs, date)
	if err != nil {
		s.log.Warn().Err(err).Str("component", "home").Str("op", op).Str("key", key).Bool("has_snapshot", cached).Msg("home: источник недоступен, отдаём снимок")
		metrics.IncDegraded("home", op)
		if cached {
			metrics.ObserveCacheLookup(op, "stale")
			return Result{HomeData: snap.Data, FromCache: true, Stale: true, FetchedAt: time.UnixMilli(snap.Timestamp)}
		}
		return Result{HomeData: emptyData()}
	}
	metrics.ObserveCacheLookup(op, "miss")
	s.writeSnapshot(ctx, key, data, now)
	return Result{HomeData: data, FetchedAt: now}
}

func (s *Service) fetch(ctx context.Context, defs []domain.SectionDef, date *time.Time) (domain.HomeData, error) {
	if len(defs) == 0 {
		return emptyData(), nil
	}
	ids := make([]int, len(defs))
	for i, d := range defs {
		ids[i] = d.CategoryID
	}
	posts, err := s.source.FetchMulti(ctx, ids, perPage(len(defs)), date)
	if err != nil {
		return domain.HomeData{}, err
	}
	return Group(posts, defs), nil
}

func (s *Service) readSnapshot(ctx context.Context, key string) (domain.Snapshot[domain.HomeData], bool) {
	var snap domain.Snapshot[domain.HomeData]
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("home: чтение снимка")
		return snap, false
	}
	if !ok {
		return snap, false
	}
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		s.log.Debug().Err(err).Str("key", key).Msg("home: повреждённый снимок считается промахом")
		metrics.ObserveCacheLookup("home", "corrupt")
		return domain.Snapshot[domain.HomeData]{}, false
	}
	return snap, true
}

func (s *Service) writeSnapshot(ctx context.Context, key string, data domain.HomeData, now time.Time) {
	raw, err := json.Marshal(domain.Snapshot[domain.HomeData]{Data: data, Timestamp: now.UnixMilli()})
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("home: сериализация снимка")
		return
	}
	if err := s.store.Set(ctx, key, string(raw)); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("home: запись снимка")
	}
}

// Group раскладывает посты по секциям. Пост попадает в секцию первой
// настроенной категории из его собственного списка категорий; каждая
// секция ограничена SectionLimit постами, дубликаты по id отбрасываются.
// Пустые секции опускаются, порядок секций совпадает с порядком объявления.
func Group(posts []domain.Post, defs []domain.SectionDef) domain.HomeData {
	index := make(map[int]int, len(defs))
	for i, d := range defs {
		if _, dup := index[d.CategoryID]; !dup {
			index[d.CategoryID] = i
		}
	}
	buckets := make([][]domain.Post, len(defs))
	seen := make(map[string]struct{}, len(posts))
	for _, p := range posts {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		for _, cat := range p.Categories {
			i, ok := index[cat]
			if !ok {
				continue
			}
			if len(buckets[i]) < SectionLimit {
				buckets[i] = append(buckets[i], rekey(p, "cat-"+strconv.Itoa(cat)+"-"))
			}
			break
		}
	}

	data := emptyData()
	for i, d := range defs {
		if len(buckets[i]) == 0 {
			continue
		}
		data.Sections = append(data.Sections, domain.Section{
			Key:        d.Key,
			Name:       d.Name,
			CategoryID: d.CategoryID,
			Posts:      buckets[i],
		})
		data.Slideshow = append(data.Slideshow, rekey(buckets[i][0], "slide-"))
	}
	return data
}

func rekey(p domain.Post, prefix string) domain.Post {
	if p.SourceID > 0 {
		p.ID = prefix + strconv.Itoa(p.SourceID)
	}
	return p
}

func perPage(categories int) int {
	return min(SectionLimit*categories+SectionLimit, maxPerPage)
}

func emptyData() domain.HomeData {
	return domain.HomeData{Sections: []domain.Section{}, Slideshow: []domain.Post{}}
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func newsKey(day time.Time) string {
	return newsKeyPrefix + day.Format("2006-01-02")
}
