package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"content-gateway/internal/adapters/cms"
	"content-gateway/internal/adapters/rssout"
	"content-gateway/internal/domain"
	"content-gateway/internal/infra/metrics"
	"content-gateway/internal/usecase/home"
	"content-gateway/internal/usecase/translate"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	maxBatchTexts   = 128
	maxBodyBytes    = 1 << 20
)

// API обслуживает публичные и административные маршруты /api/v1.
type API struct {
	Home      *home.Service
	Translate *translate.Service
	Content   domain.ContentSource
	Board     domain.BoardFeed
	Location  *time.Location
	FeedMeta  rssout.Meta
	Log       zerolog.Logger
}

// Register монтирует маршруты. Мутации кэша закрыты AdminTokenMiddleware.
func (a *API) Register(r chi.Router, adminToken string) {
	if a.Location == nil {
		a.Location = time.UTC
	}
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/home", a.handleHome)
		r.Get("/news", a.handleNews)
		r.Get("/news.xml", a.handleNewsRSS)
		r.Get("/categories", a.handleCategories)
		r.Get("/categories/{id}/posts", a.handleCategoryPosts)
		r.Get("/search", a.handleSearch)
		r.Get("/board", a.handleBoard)
		r.Get("/posts/{id}", a.handlePost)
		r.Post("/translate", a.handleTranslate)
		r.Post("/translate/batch", a.handleTranslateBatch)

		r.Group(func(admin chi.Router) {
			admin.Use(AdminTokenMiddleware(adminToken))
			admin.Delete("/cache/translations", a.handleClearTranslations)
			admin.Delete("/cache/snapshots", a.handleClearSnapshots)
		})
	})
}

func (a *API) handleHome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Home.Home(r.Context(), isTrue(r.URL.Query().Get("force"))))
}

func (a *API) handleNews(w http.ResponseWriter, r *http.Request) {
	q, ok := a.newsQuery(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a.Home.News(r.Context(), q))
}

func (a *API) handleNewsRSS(w http.ResponseWriter, r *http.Request) {
	q, ok := a.newsQuery(w, r)
	if !ok {
		return
	}
	res := a.Home.News(r.Context(), q)
	rss, err := rssout.NewsRSS(a.FeedMeta, res.HomeData, time.Now())
	if err != nil {
		a.Log.Error().Err(err).Str("request_id", RequestID(r)).Msg("api: news rss")
		writeError(w, http.StatusInternalServerError, "failed to render feed")
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	_, _ = w.Write([]byte(rss))
}

func (a *API) newsQuery(w http.ResponseWriter, r *http.Request) (home.NewsQuery, bool) {
	q := home.NewsQuery{Force: isTrue(r.URL.Query().Get("force"))}
	if raw := r.URL.Query().Get("date"); raw != "" {
		day, err := time.ParseInLocation("2006-01-02", raw, a.Location)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return q, false
		}
		q.Date = &day
	}
	return q, true
}

func (a *API) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := a.Content.Categories(r.Context(), maxPageSize)
	if err != nil {
		a.Log.Warn().Err(err).Str("request_id", RequestID(r)).Msg("api: categories")
		writeError(w, http.StatusBadGateway, "content source unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

func (a *API) handleCategoryPosts(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "category id must be a positive integer")
		return
	}
	page, pageSize, ok := pageParams(w, r, defaultPageSize)
	if !ok {
		return
	}
	q := domain.CategoryQuery{CategoryID: id, Page: page, PageSize: pageSize}
	if raw := r.URL.Query().Get("date"); raw != "" {
		day, err := time.ParseInLocation("2006-01-02", raw, a.Location)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		q.Date = &day
	}
	posts, err := a.Content.FetchByCategory(r.Context(), q)
	a.writePage(w, r, "category_posts", posts, pageSize, err)
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	page, _, ok := pageParams(w, r, cms.SearchPageSize)
	if !ok {
		return
	}
	posts, err := a.Content.Search(r.Context(), query, page)
	a.writePage(w, r, "search", posts, cms.SearchPageSize, err)
}

func (a *API) handleBoard(w http.ResponseWriter, r *http.Request) {
	page, pageSize, ok := pageParams(w, r, defaultPageSize)
	if !ok {
		return
	}
	posts := a.Board.FetchBoardFeed(r.Context(), page, pageSize)
	a.writePage(w, r, "board", posts, pageSize, nil)
}

// writePage отдаёт страницу; сбой источника превращается в пустую страницу.
func (a *API) writePage(w http.ResponseWriter, r *http.Request, op string, posts []domain.Post, pageSize int, err error) {
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.Log.Warn().Err(err).Str("component", "api").Str("op", op).Str("request_id", RequestID(r)).Msg("api: источник недоступен, отдаём пустую страницу")
		metrics.IncDegraded("api", op)
		posts = nil
	}
	if posts == nil {
		posts = []domain.Post{}
	}
	writeJSON(w, http.StatusOK, domain.PageResult{Posts: posts, HasMore: err == nil && domain.HasMore(len(posts), pageSize)})
}

func (a *API) handlePost(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "post id must be a positive integer")
		return
	}
	post, err := a.Content.FetchPostDetail(r.Context(), "", id)
	if err != nil {
		var netErr *domain.NetworkError
		if errors.As(err, &netErr) && netErr.Status == http.StatusNotFound {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		a.Log.Warn().Err(err).Int("post_id", id).Str("request_id", RequestID(r)).Msg("api: post detail")
		writeError(w, http.StatusBadGateway, "content source unavailable")
		return
	}
	writeJSON(w, http.StatusOK, post)
}

type translateRequest struct {
	Text   string `json:"text"`
	Target string `json:"target"`
	Source string `json:"source"`
}

type translateBatchRequest struct {
	Texts  []string `json:"texts"`
	Target string   `json:"target"`
}

func (a *API) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Target == "" {
		writeError(w, http.StatusBadRequest, "target is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": a.Translate.Translate(r.Context(), req.Text, req.Target, req.Source)})
}

func (a *API) handleTranslateBatch(w http.ResponseWriter, r *http.Request) {
	var req translateBatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Target == "" {
		writeError(w, http.StatusBadRequest, "target is required")
		return
	}
	if len(req.Texts) > maxBatchTexts {
		writeError(w, http.StatusBadRequest, "too many texts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"texts": a.Translate.TranslateMany(r.Context(), req.Texts, req.Target)})
}

func (a *API) handleClearTranslations(w http.ResponseWriter, r *http.Request) {
	a.clear(w, r, "translations", a.Translate.ClearCache)
}

func (a *API) handleClearSnapshots(w http.ResponseWriter, r *http.Request) {
	a.clear(w, r, "snapshots", a.Home.ClearSnapshots)
}

func (a *API) clear(w http.ResponseWriter, r *http.Request, what string, fn func(context.Context) (int, error)) {
	n, err := fn(r.Context())
	if err != nil {
		a.Log.Error().Err(err).Str("cache", what).Str("request_id", RequestID(r)).Msg("api: очистка кэша")
		writeError(w, http.StatusInternalServerError, "failed to clear "+what)
		return
	}
	a.Log.Info().Str("cache", what).Int("deleted", n).Msg("api: кэш очищен")
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func pageParams(w http.ResponseWriter, r *http.Request, defaultSize int) (int, int, bool) {
	page, ok := intParam(w, r, "page", 1)
	if !ok {
		return 0, 0, false
	}
	size, ok := intParam(w, r, "per_page", defaultSize)
	if !ok {
		return 0, 0, false
	}
	return page, min(size, maxPageSize), true
}

func intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		writeError(w, http.StatusBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return v, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func isTrue(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
