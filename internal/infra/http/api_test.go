package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"content-gateway/internal/domain"
	"content-gateway/internal/infra/kv"
	"content-gateway/internal/usecase/home"
	"content-gateway/internal/usecase/translate"
)

type fakeContent struct {
	posts     []domain.Post
	err       error
	detailErr error
	lastQuery domain.CategoryQuery
}

func (f *fakeContent) FetchByCategory(_ context.Context, q domain.CategoryQuery) ([]domain.Post, error) {
	f.lastQuery = q
	return f.posts, f.err
}

func (f *fakeContent) FetchMulti(context.Context, []int, int, *time.Time) ([]domain.Post, error) {
	return f.posts, f.err
}

func (f *fakeContent) Search(context.Context, string, int) ([]domain.Post, error) {
	return f.posts, f.err
}

func (f *fakeContent) FetchPostDetail(_ context.Context, _ string, id int) (domain.Post, error) {
	if f.detailErr != nil {
		return domain.Post{}, f.detailErr
	}
	return domain.Post{ID: "post-7", Title: "Detail"}, nil
}

func (f *fakeContent) Categories(context.Context, int) ([]domain.Category, error) {
	return []domain.Category{{ID: 32, Name: "Community"}}, f.err
}

type fakeBoard struct{ posts []domain.Post }

func (f *fakeBoard) FetchBoardFeed(context.Context, int, int) []domain.Post { return f.posts }

type upperTranslator struct{ err error }

func (u upperTranslator) Translate(_ context.Context, texts []string, _, _ string) ([]string, error) {
	if u.err != nil {
		return nil, u.err
	}
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = strings.ToUpper(t)
	}
	return out, nil
}

var sections = []domain.SectionDef{{Key: "community", Name: "Community", CategoryID: 32}}

func newTestRouter(content *fakeContent, board *fakeBoard, tr domain.Translator) chi.Router {
	store := kv.NewMemory()
	api := &API{
		Home:      home.NewService(content, store, sections, sections),
		Translate: translate.NewService(tr, store, "ko"),
		Content:   content,
		Board:     board,
		Log:       zerolog.Nop(),
	}
	r := chi.NewRouter()
	api.Register(r, "secret")
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHomeEndpoint(t *testing.T) {
	content := &fakeContent{posts: []domain.Post{{ID: "multi-1", SourceID: 1, Categories: []int{32}}}}
	r := newTestRouter(content, &fakeBoard{}, upperTranslator{})

	rec := do(t, r, http.MethodGet, "/api/v1/home", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	var res home.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Sections) != 1 || res.Sections[0].Posts[0].ID != "cat-32-1" || len(res.Slideshow) != 1 {
		t.Fatalf("неожиданный ответ: %s", rec.Body.String())
	}
}

func TestNewsEndpointRejectsBadDate(t *testing.T) {
	r := newTestRouter(&fakeContent{}, &fakeBoard{}, upperTranslator{})
	if rec := do(t, r, http.MethodGet, "/api/v1/news?date=01-05-2024", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидали 400, получили %d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, "/api/v1/news.xml?date=2024-05-01", "", nil); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<rss") {
		t.Fatalf("ожидали RSS, получили %d %s", rec.Code, rec.Body.String())
	}
}

func TestCategoryPostsDegradesToEmptyPage(t *testing.T) {
	content := &fakeContent{err: &domain.NetworkError{Op: "cms", Status: 503}}
	r := newTestRouter(content, &fakeBoard{}, upperTranslator{})

	rec := do(t, r, http.MethodGet, "/api/v1/categories/32/posts?page=2&per_page=5&date=2024-05-01", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"posts":[],"has_more":false}` {
		t.Fatalf("ожидали пустую страницу, получили %s", rec.Body.String())
	}
	if content.lastQuery.Page != 2 || content.lastQuery.PageSize != 5 || content.lastQuery.Date == nil {
		t.Fatalf("неожиданный запрос: %+v", content.lastQuery)
	}
	if rec := do(t, r, http.MethodGet, "/api/v1/categories/abc/posts", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидали 400, получили %d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, "/api/v1/categories/32/posts?page=0", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидали 400, получили %d", rec.Code)
	}
}

func TestBoardHasMore(t *testing.T) {
	board := &fakeBoard{posts: []domain.Post{{ID: "kb-1"}, {ID: "kb-2"}}}
	r := newTestRouter(&fakeContent{}, board, upperTranslator{})

	rec := do(t, r, http.MethodGet, "/api/v1/board?per_page=2", "", nil)
	var page domain.PageResult
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Posts) != 2 || !page.HasMore {
		t.Fatalf("полная страница должна давать has_more: %s", rec.Body.String())
	}
	rec = do(t, r, http.MethodGet, "/api/v1/board?per_page=3", "", nil)
	_ = json.Unmarshal(rec.Body.Bytes(), &page)
	if page.HasMore {
		t.Fatalf("неполная страница не должна давать has_more")
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	r := newTestRouter(&fakeContent{}, &fakeBoard{}, upperTranslator{})
	if rec := do(t, r, http.MethodGet, "/api/v1/search", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидали 400, получили %d", rec.Code)
	}
}

func TestPostDetailErrors(t *testing.T) {
	content := &fakeContent{}
	r := newTestRouter(content, &fakeBoard{}, upperTranslator{})
	if rec := do(t, r, http.MethodGet, "/api/v1/posts/7", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	content.detailErr = &domain.NetworkError{Op: "cms", Status: http.StatusNotFound}
	if rec := do(t, r, http.MethodGet, "/api/v1/posts/7", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("ожидали 404, получили %d", rec.Code)
	}
	content.detailErr = errors.New("timeout")
	if rec := do(t, r, http.MethodGet, "/api/v1/posts/7", "", nil); rec.Code != http.StatusBadGateway {
		t.Fatalf("ожидали 502, получили %d", rec.Code)
	}
}

func TestTranslateEndpoints(t *testing.T) {
	r := newTestRouter(&fakeContent{}, &fakeBoard{}, upperTranslator{})

	rec := do(t, r, http.MethodPost, "/api/v1/translate", `{"text":"xin chao","target":"en"}`, nil)
	if strings.TrimSpace(rec.Body.String()) != `{"text":"XIN CHAO"}` {
		t.Fatalf("неожиданный ответ: %s", rec.Body.String())
	}
	rec = do(t, r, http.MethodPost, "/api/v1/translate/batch", `{"texts":["a","b","a"],"target":"en"}`, nil)
	if strings.TrimSpace(rec.Body.String()) != `{"texts":["A","B","A"]}` {
		t.Fatalf("неожиданный ответ: %s", rec.Body.String())
	}
	if rec := do(t, r, http.MethodPost, "/api/v1/translate", `{"text":"x"}`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидали 400 без target, получили %d", rec.Code)
	}
}

func TestTranslateFailureReturnsOriginal(t *testing.T) {
	r := newTestRouter(&fakeContent{}, &fakeBoard{}, upperTranslator{err: errors.New("down")})
	rec := do(t, r, http.MethodPost, "/api/v1/translate", `{"text":"xin chao","target":"en"}`, nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"text":"xin chao"}` {
		t.Fatalf("ожидали исходный текст, получили %d %s", rec.Code, rec.Body.String())
	}
}

func TestCacheClearRequiresAdminToken(t *testing.T) {
	r := newTestRouter(&fakeContent{}, &fakeBoard{}, upperTranslator{})
	do(t, r, http.MethodPost, "/api/v1/translate", `{"text":"a","target":"en"}`, nil)

	if rec := do(t, r, http.MethodDelete, "/api/v1/cache/translations", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("ожидали 401, получили %d", rec.Code)
	}
	if rec := do(t, r, http.MethodDelete, "/api/v1/cache/translations", "", map[string]string{"Authorization": "Bearer wrong"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("ожидали 401, получили %d", rec.Code)
	}
	rec := do(t, r, http.MethodDelete, "/api/v1/cache/translations", "", map[string]string{"Authorization": "Bearer secret"})
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"deleted":1}` {
		t.Fatalf("ожидали удаление одной записи, получили %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, r, http.MethodDelete, "/api/v1/cache/snapshots", "", map[string]string{"X-Admin-Token": "secret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
}

func TestAdminDisabledWithoutToken(t *testing.T) {
	h := AdminTokenMiddleware("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("обработчик не должен вызываться")
	}))
	rec := do(t, h, http.MethodDelete, "/", "", map[string]string{"Authorization": "Bearer "})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("ожидали 403, получили %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv := NewServer(zerolog.Nop())
	rec := do(t, srv.Router, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
}
