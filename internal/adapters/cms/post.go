package cms

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"content-gateway/internal/adapters/htmltext"
	"content-gateway/internal/domain"
)

const excerptLimit = 300

type wpRendered struct {
	Rendered string `json:"rendered"`
}

type wpMedia struct {
	SourceURL string `json:"source_url"`
}

type wpTerm struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Taxonomy string `json:"taxonomy"`
}

type wpPost struct {
	ID         int                   `json:"id"`
	Date       string                `json:"date"`
	Link       string                `json:"link"`
	Title      wpRendered            `json:"title"`
	Excerpt    wpRendered            `json:"excerpt"`
	Content    wpRendered            `json:"content"`
	Categories []int                 `json:"categories"`
	Meta       wpMeta                `json:"meta"`
	Embedded   struct {
		FeaturedMedia []wpMedia  `json:"wp:featuredmedia"`
		Terms         [][]wpTerm `json:"wp:term"`
	} `json:"_embedded"`
}

// wpMeta — мета-поля поста. WordPress отдаёт [] вместо {}, когда мета
// не зарегистрированы; любое значение, кроме объекта, даёт пустую карту.
type wpMeta map[string]flexString

func (m *wpMeta) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		*m = nil
		return nil
	}
	var fields map[string]flexString
	if err := json.Unmarshal(data, &fields); err != nil {
		*m = nil
		return nil
	}
	*m = fields
	return nil
}

// flexString принимает строку или массив строк (мета-поля WordPress
// приходят в обоих видах) и хранит первое непустое значение.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*f = ""
		return nil
	case data[0] == '[':
		var values []string
		if err := json.Unmarshal(data, &values); err != nil {
			*f = ""
			return nil
		}
		for _, v := range values {
			if v != "" {
				*f = flexString(v)
				return nil
			}
		}
		*f = ""
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	default:
		*f = flexString(string(data))
		return nil
	}
}

func (p wpPost) featuredImage() string {
	for _, m := range p.Embedded.FeaturedMedia {
		if m.SourceURL != "" {
			return m.SourceURL
		}
	}
	for _, key := range []string{"featured_image", "thumbnail", "image"} {
		if v := strings.TrimSpace(string(p.Meta[key])); v != "" {
			return v
		}
	}
	return htmltext.FirstImage(p.Content.Rendered)
}

func (p wpPost) categoryName() string {
	if v := strings.TrimSpace(string(p.Meta["news_category"])); v != "" {
		return htmltext.PlainText(v)
	}
	for _, group := range p.Embedded.Terms {
		for _, term := range group {
			if term.Taxonomy == "category" && term.Name != "" {
				return htmltext.PlainText(term.Name)
			}
		}
	}
	return ""
}

func (p wpPost) toDomain(id string, loc *time.Location) domain.Post {
	excerpt := htmltext.PlainText(p.Excerpt.Rendered)
	if excerpt == "" {
		excerpt = htmltext.PlainText(p.Content.Rendered)
	}
	return domain.Post{
		ID:               id,
		SourceID:         p.ID,
		Title:            htmltext.PlainText(p.Title.Rendered),
		Excerpt:          htmltext.Truncate(excerpt, excerptLimit),
		Content:          p.Content.Rendered,
		Date:             p.Date,
		PublishedAt:      htmltext.ParseDate(p.Date, loc),
		FeaturedImageURL: p.featuredImage(),
		Category:         p.categoryName(),
		Source:           htmltext.PlainText(string(p.Meta["news_source"])),
		Link:             p.Link,
		Categories:       append([]int(nil), p.Categories...),
	}
}
