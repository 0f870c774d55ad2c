// Package rssout экспортирует агрегированные новости в RSS 2.0.
package rssout

import (
	"fmt"
	"html"
	"time"

	"github.com/gorilla/feeds"

	"content-gateway/internal/domain"
)

// Meta описывает канал ленты.
type Meta struct {
	Title       string
	Link        string
	Description string
}

// NewsRSS собирает RSS из секций: порядок секций и постов сохраняется,
// категория элемента — имя секции.
func NewsRSS(meta Meta, data domain.HomeData, now time.Time) (string, error) {
	feed := &feeds.Feed{
		Title:       meta.Title,
		Link:        &feeds.Link{Href: meta.Link, Rel: "self", Type: "text/html"},
		Description: meta.Description,
		Created:     now,
		Updated:     now,
	}
	seen := map[string]struct{}{}
	for _, section := range data.Sections {
		for _, p := range section.Posts {
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			item := &feeds.Item{
				Title:       p.Title,
				Link:        &feeds.Link{Href: p.Link, Rel: "alternate", Type: "text/html"},
				Id:          p.ID,
				Description: p.Excerpt,
				Created:     p.PublishedAt,
			}
			if p.FeaturedImageURL != "" {
				item.Content = fmt.Sprintf(`<p><img src="%s"></p><p>%s</p>`, html.EscapeString(p.FeaturedImageURL), html.EscapeString(p.Excerpt))
			}
			if p.Source != "" {
				item.Author = &feeds.Author{Name: p.Source}
			}
			feed.Items = append(feed.Items, item)
		}
	}
	rss, err := feed.ToRss()
	if err != nil {
		return "", fmt.Errorf("rssout: render: %w", err)
	}
	return rss, nil
}
