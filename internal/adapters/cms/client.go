package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"content-gateway/internal/adapters/htmltext"
	"content-gateway/internal/domain"
	"content-gateway/internal/infra/metrics"
)

// SearchPageSize — фиксированный размер страницы поиска.
const SearchPageSize = 10

const (
	defaultTimeout  = 8 * time.Second
	maxBodyBytes    = 8 << 20
	maxPerPageLimit = 100
)

// Client выполняет запросы к REST API CMS (WordPress wp/v2).
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	loc     *time.Location
	log     zerolog.Logger
}

var _ domain.ContentSource = (*Client)(nil)

// Option настраивает клиента.
type Option func(*Client)

// WithHTTPClient подменяет http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithTimeout задаёт бюджет одного запроса.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLocation задаёт часовой пояс CMS для дат без зоны и фильтра по дню.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.log = logger }
}

// New создаёт клиента CMS.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("cms: base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("cms: parse base url: %w", err)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: defaultTimeout,
		loc:     time.UTC,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchByCategory возвращает страницу постов категории. Длина результата
// меньше PageSize означает, что страниц больше нет.
func (c *Client) FetchByCategory(ctx context.Context, q domain.CategoryQuery) ([]domain.Post, error) {
	if q.CategoryID <= 0 || q.Page <= 0 || q.PageSize <= 0 {
		return nil, fmt.Errorf("cms: category=%d page=%d per_page=%d: %w", q.CategoryID, q.Page, q.PageSize, domain.ErrInvalidArgument)
	}
	params := url.Values{}
	params.Set("categories", strconv.Itoa(q.CategoryID))
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("per_page", strconv.Itoa(min(q.PageSize, maxPerPageLimit)))
	params.Set("_embed", "1")
	c.applyDay(params, q.Date)

	items, err := c.listPosts(ctx, "posts_by_category", c.baseURL, params)
	if err != nil {
		return nil, err
	}
	prefix := "cat-" + strconv.Itoa(q.CategoryID) + "-"
	return c.mapPosts(items, func(p wpPost) string { return prefix + strconv.Itoa(p.ID) }), nil
}

// FetchMulti запрашивает посты нескольких категорий одним вызовом.
func (c *Client) FetchMulti(ctx context.Context, categoryIDs []int, perPage int, date *time.Time) ([]domain.Post, error) {
	if len(categoryIDs) == 0 || perPage <= 0 {
		return nil, fmt.Errorf("cms: categories=%v per_page=%d: %w", categoryIDs, perPage, domain.ErrInvalidArgument)
	}
	ids := make([]string, len(categoryIDs))
	for i, id := range categoryIDs {
		ids[i] = strconv.Itoa(id)
	}
	params := url.Values{}
	params.Set("categories", strings.Join(ids, ","))
	params.Set("per_page", strconv.Itoa(min(perPage, maxPerPageLimit)))
	params.Set("_embed", "1")
	c.applyDay(params, date)

	items, err := c.listPosts(ctx, "posts_multi", c.baseURL, params)
	if err != nil {
		return nil, err
	}
	return c.mapPosts(items, func(p wpPost) string { return "multi-" + strconv.Itoa(p.ID) }), nil
}

// Search выполняет полнотекстовый поиск CMS.
func (c *Client) Search(ctx context.Context, query string, page int) ([]domain.Post, error) {
	query = strings.TrimSpace(query)
	if query == "" || page <= 0 {
		return nil, fmt.Errorf("cms: search %q page=%d: %w", query, page, domain.ErrInvalidArgument)
	}
	params := url.Values{}
	params.Set("search", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(SearchPageSize))
	params.Set("_embed", "1")

	items, err := c.listPosts(ctx, "search", c.baseURL, params)
	if err != nil {
		return nil, err
	}
	return c.mapPosts(items, func(p wpPost) string { return "search-" + strconv.Itoa(p.ID) }), nil
}

// FetchPostDetail загружает один пост. Ошибка передаётся вызывающему.
// Пустой baseURL означает основной адрес CMS.
func (c *Client) FetchPostDetail(ctx context.Context, baseURL string, postID int) (domain.Post, error) {
	if postID <= 0 {
		return domain.Post{}, fmt.Errorf("cms: post id %d: %w", postID, domain.ErrInvalidArgument)
	}
	base := c.baseURL
	if baseURL != "" {
		base = strings.TrimRight(baseURL, "/")
	}
	endpoint := fmt.Sprintf("%s/posts/%d?_embed=1", base, postID)
	body, err := c.get(ctx, "post_detail", endpoint)
	if err != nil {
		return domain.Post{}, err
	}
	var item wpPost
	if err := json.Unmarshal(body, &item); err != nil {
		return domain.Post{}, fmt.Errorf("cms: decode post %d: %w", postID, err)
	}
	return item.toDomain("post-"+strconv.Itoa(item.ID), c.loc), nil
}

// Categories возвращает рубрики CMS.
func (c *Client) Categories(ctx context.Context, perPage int) ([]domain.Category, error) {
	if perPage <= 0 {
		perPage = maxPerPageLimit
	}
	endpoint := fmt.Sprintf("%s/categories?per_page=%d", c.baseURL, min(perPage, maxPerPageLimit))
	body, err := c.get(ctx, "categories", endpoint)
	if err != nil {
		return nil, err
	}
	var cats []domain.Category
	if err := json.Unmarshal(body, &cats); err != nil {
		return nil, fmt.Errorf("cms: decode categories: %w", err)
	}
	for i := range cats {
		cats[i].Name = htmltext.PlainText(cats[i].Name)
	}
	return cats, nil
}

// applyDay добавляет включительный диапазон [00:00:00, 23:59:59] дня в зоне CMS.
func (c *Client) applyDay(params url.Values, date *time.Time) {
	if date == nil {
		return
	}
	day := date.In(c.loc).Format("2006-01-02")
	params.Set("after", day+"T00:00:00")
	params.Set("before", day+"T23:59:59")
}

func (c *Client) listPosts(ctx context.Context, op, base string, params url.Values) ([]json.RawMessage, error) {
	body, err := c.get(ctx, op, base+"/posts?"+params.Encode())
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("cms: decode %s: %w", op, err)
	}
	return items, nil
}

// mapPosts разбирает элементы по одному: битый элемент пропускается.
func (c *Client) mapPosts(items []json.RawMessage, id func(wpPost) string) []domain.Post {
	posts := make([]domain.Post, 0, len(items))
	for i, raw := range items {
		var item wpPost
		if err := json.Unmarshal(raw, &item); err != nil || item.ID == 0 {
			c.log.Warn().Err(err).Int("index", i).Msg("cms: пропускаем некорректный пост")
			continue
		}
		posts = append(posts, item.toDomain(id(item), c.loc))
	}
	return posts
}

func (c *Client) get(ctx context.Context, op, endpoint string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("cms: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("cms", op, "wp", start, err)
		return nil, &domain.NetworkError{Op: "cms " + op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.ObserveNetworkRequest("cms", op, "wp", start, err)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &domain.NetworkError{Op: "cms " + op, Err: err}
		}
		return nil, fmt.Errorf("cms: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := &domain.NetworkError{Op: "cms " + op, Status: resp.StatusCode}
		var apiErr wpError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			err.Err = errors.New(apiErr.Message)
		}
		metrics.ObserveNetworkRequest("cms", op, "wp", start, err)
		return nil, err
	}
	metrics.ObserveNetworkRequest("cms", op, "wp", start, nil)
	return body, nil
}

type wpError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
