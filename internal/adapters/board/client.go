// Package board читает RSS-ленту доски объявлений.
package board

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"content-gateway/internal/adapters/htmltext"
	"content-gateway/internal/domain"
	"content-gateway/internal/infra/metrics"
)

const (
	defaultTimeout = 8 * time.Second
	excerptLimit   = 300
	maxBodyBytes   = 4 << 20
)

// Client загружает и разбирает RSS доски.
type Client struct {
	feedURL string
	http    *http.Client
	timeout time.Duration
	loc     *time.Location
	parser  *gofeed.Parser
	log     zerolog.Logger
}

var _ domain.BoardFeed = (*Client)(nil)

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

// WithTimeout задаёт бюджет запроса.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLocation задаёт часовой пояс для дат без зоны.
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

// New создаёт клиента ленты.
func New(feedURL string, opts ...Option) (*Client, error) {
	if feedURL == "" {
		return nil, fmt.Errorf("board: feed url is required")
	}
	if _, err := url.Parse(feedURL); err != nil {
		return nil, fmt.Errorf("board: parse feed url: %w", err)
	}
	c := &Client{
		feedURL: feedURL,
		http:    &http.Client{},
		timeout: defaultTimeout,
		loc:     time.UTC,
		parser:  gofeed.NewParser(),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchBoardFeed возвращает страницу объявлений. Любой сбой даёт пустой список.
func (c *Client) FetchBoardFeed(ctx context.Context, page, pageSize int) []domain.Post {
	if page <= 0 || pageSize <= 0 {
		c.log.Warn().Int("page", page).Int("page_size", pageSize).Msg("board: некорректные параметры страницы")
		return []domain.Post{}
	}
	body, err := c.download(ctx, page, pageSize)
	if err != nil {
		c.log.Warn().Err(err).Str("op", "fetch_board_feed").Int("page", page).Msg("board: лента недоступна")
		metrics.IncDegraded("board", "fetch_board_feed")
		return []domain.Post{}
	}
	return c.parse(body, page)
}

func (c *Client) download(ctx context.Context, page, pageSize int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u, err := url.Parse(c.feedURL)
	if err != nil {
		return "", fmt.Errorf("board: parse feed url: %w", err)
	}
	q := u.Query()
	q.Set("per_page", strconv.Itoa(pageSize))
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("board: build request: %w", err)
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("board", "fetch_feed", "rss", start, err)
		return "", &domain.NetworkError{Op: "board fetch_feed", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err == nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		err = &domain.NetworkError{Op: "board fetch_feed", Status: resp.StatusCode}
	}
	metrics.ObserveNetworkRequest("board", "fetch_feed", "rss", start, err)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// parse разбирает документ через gofeed; если он отвергнут целиком,
// поля извлекаются из каждого <item> по отдельности.
func (c *Client) parse(body string, page int) []domain.Post {
	feed, err := c.parser.ParseString(body)
	if err != nil {
		c.log.Debug().Err(err).Msg("board: gofeed отверг документ, разбираем элементы вручную")
		return c.fromItems(extractItems(body), page)
	}
	items := make([]rawItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		items = append(items, fromFeedItem(it))
	}
	return c.fromItems(items, page)
}

type rawItem struct {
	Title       string
	Link        string
	Description string
	PubDate     string
	Category    string
	Image       string
}

func fromFeedItem(it *gofeed.Item) rawItem {
	r := rawItem{
		Title:       it.Title,
		Link:        strings.TrimSpace(it.Link),
		Description: it.Description,
		PubDate:     strings.TrimSpace(it.Published),
	}
	if r.Description == "" {
		r.Description = it.Content
	}
	if len(it.Categories) > 0 {
		r.Category = strings.TrimSpace(it.Categories[0])
	}
	for _, enc := range it.Enclosures {
		if enc != nil && enc.URL != "" && (enc.Type == "" || strings.HasPrefix(enc.Type, "image/")) {
			r.Image = enc.URL
			break
		}
	}
	if r.Image == "" && it.Image != nil {
		r.Image = it.Image.URL
	}
	return r
}

var (
	itemPattern = regexp.MustCompile(`(?is)<item\b[^>]*>(.*?)</item>`)
	cdataPrefix = "<![CDATA["
	cdataSuffix = "]]>"
)

func tagPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?is)<` + name + `\b[^>]*>(.*?)</` + name + `>`)
}

var (
	titleTag       = tagPattern("title")
	linkTag        = tagPattern("link")
	descriptionTag = tagPattern("description")
	pubDateTag     = tagPattern("pubDate")
	categoryTag    = tagPattern("category")
	enclosureTag   = regexp.MustCompile(`(?is)<enclosure\b[^>]*\burl\s*=\s*["']([^"']+)["']`)
)

func extractItems(body string) []rawItem {
	matches := itemPattern.FindAllStringSubmatch(body, -1)
	items := make([]rawItem, 0, len(matches))
	for _, m := range matches {
		block := m[1]
		items = append(items, rawItem{
			Title:       tagText(titleTag, block),
			Link:        tagText(linkTag, block),
			Description: tagText(descriptionTag, block),
			PubDate:     tagText(pubDateTag, block),
			Category:    tagText(categoryTag, block),
			Image:       firstSubmatch(enclosureTag, block),
		})
	}
	return items
}

func tagText(re *regexp.Regexp, block string) string {
	v := strings.TrimSpace(firstSubmatch(re, block))
	if strings.HasPrefix(v, cdataPrefix) && strings.HasSuffix(v, cdataSuffix) {
		return strings.TrimSpace(v[len(cdataPrefix) : len(v)-len(cdataSuffix)])
	}
	return html.UnescapeString(v)
}

func firstSubmatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

var (
	linkIDParam   = regexp.MustCompile(`[?&](?:wr_id|id|p|no)=(\d+)`)
	linkIDSegment = regexp.MustCompile(`/(\d+)/?(?:[?#]|$)`)
)

// linkID достаёт числовой идентификатор объявления из ссылки.
func linkID(link string) string {
	if m := linkIDParam.FindStringSubmatch(link); len(m) == 2 {
		return m[1]
	}
	if m := linkIDSegment.FindStringSubmatch(link); len(m) == 2 {
		return m[1]
	}
	return ""
}

func (c *Client) fromItems(items []rawItem, page int) []domain.Post {
	posts := make([]domain.Post, 0, len(items))
	for i, it := range items {
		title := htmltext.PlainText(it.Title)
		if title == "" && it.Link == "" {
			continue
		}
		id := "kb-p" + strconv.Itoa(page) + "-" + strconv.Itoa(i)
		if lid := linkID(it.Link); lid != "" {
			id = "kb-" + lid
		}
		image := strings.TrimSpace(it.Image)
		if image == "" {
			image = htmltext.FirstImage(it.Description)
		}
		posts = append(posts, domain.Post{
			ID:               id,
			Title:            title,
			Excerpt:          htmltext.Truncate(htmltext.PlainText(it.Description), excerptLimit),
			Content:          it.Description,
			Date:             it.PubDate,
			PublishedAt:      htmltext.ParseDate(it.PubDate, c.loc),
			FeaturedImageURL: image,
			Category:         htmltext.PlainText(it.Category),
			Source:           "board",
			Link:             it.Link,
		})
	}
	return posts
}
