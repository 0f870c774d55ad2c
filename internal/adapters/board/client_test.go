package board

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Board</title>
  <link>https://board.example</link>
  <description>classifieds</description>
  <item>
    <title>Apartment for rent</title>
    <link>https://board.example/bbs/board.php?bo_table=rent&amp;wr_id=4521</link>
    <description><![CDATA[<p>Two rooms</p><img src="https://cdn.example/room.jpg">]]></description>
    <pubDate>Wed, 01 May 2024 10:20:30 +0700</pubDate>
    <category>Rent</category>
    <category>District 7</category>
  </item>
  <item>
    <title>Motorbike</title>
    <link>https://board.example/market/998/</link>
    <description>Honda</description>
  </item>
  <item>
    <description>no title and no link</description>
  </item>
  <item>
    <title>Synthetic id</title>
    <link>https://board.example/market/latest</link>
  </item>
</channel>
</rss>`

func newTestClient(t *testing.T, status int, body string, gotQuery *string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotQuery != nil {
			*gotQuery = r.URL.RawQuery
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/rss?bo_table=all", WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	return c
}

func TestFetchBoardFeed(t *testing.T) {
	var query string
	c := newTestClient(t, http.StatusOK, rssFeed, &query)

	posts := c.FetchBoardFeed(context.Background(), 2, 20)
	if query != "bo_table=all&page=2&per_page=20" {
		t.Fatalf("неожиданные параметры: %s", query)
	}
	if len(posts) != 3 {
		t.Fatalf("ожидали 3 объявления, получили %d", len(posts))
	}

	first := posts[0]
	if first.ID != "kb-4521" {
		t.Fatalf("ожидали id из wr_id, получили %s", first.ID)
	}
	if first.Category != "Rent" {
		t.Fatalf("ожидали первую категорию, получили %q", first.Category)
	}
	if first.FeaturedImageURL != "https://cdn.example/room.jpg" {
		t.Fatalf("ожидали изображение из описания, получили %q", first.FeaturedImageURL)
	}
	if first.Excerpt != "Two rooms" || first.PublishedAt.IsZero() {
		t.Fatalf("неожиданный пост: %+v", first)
	}

	second := posts[1]
	if second.ID != "kb-998" {
		t.Fatalf("ожидали id из пути, получили %s", second.ID)
	}
	if second.Date != "" || second.Category != "" {
		t.Fatalf("ожидали пустые дату и категорию, получили %q / %q", second.Date, second.Category)
	}
	if second.FeaturedImageURL != "" {
		t.Fatalf("не ожидали изображение, получили %q", second.FeaturedImageURL)
	}

	if posts[2].ID != "kb-p2-3" {
		t.Fatalf("ожидали синтетический id, получили %s", posts[2].ID)
	}
}

func TestFetchBoardFeedFallsBackToItemExtraction(t *testing.T) {
	body := `<html><body>
<item><title>Fallback &amp; co</title><link>https://board.example/view?no=77</link>
<description><![CDATA[<img src="https://cdn.example/77.jpg"> text]]></description></item>
<item><title>Second</title><link>https://board.example/view?id=78</link>
<pubDate>2024-05-01 08:00:00</pubDate><category>Jobs</category>
<enclosure url="https://cdn.example/78.jpg" type="image/jpeg"/></item>
</body></html>`
	c := newTestClient(t, http.StatusOK, body, nil)

	posts := c.FetchBoardFeed(context.Background(), 1, 10)
	if len(posts) != 2 {
		t.Fatalf("ожидали 2 объявления, получили %d", len(posts))
	}
	if posts[0].ID != "kb-77" || posts[0].Title != "Fallback & co" {
		t.Fatalf("неожиданный пост: %+v", posts[0])
	}
	if posts[0].FeaturedImageURL != "https://cdn.example/77.jpg" || posts[0].Date != "" {
		t.Fatalf("неожиданные поля: %+v", posts[0])
	}
	if posts[1].ID != "kb-78" || posts[1].Category != "Jobs" || posts[1].FeaturedImageURL != "https://cdn.example/78.jpg" {
		t.Fatalf("неожиданный пост: %+v", posts[1])
	}
	if posts[1].PublishedAt.IsZero() {
		t.Fatalf("ожидали разобранную дату")
	}
}

func TestFetchBoardFeedUpstreamErrorGivesEmptyList(t *testing.T) {
	c := newTestClient(t, http.StatusInternalServerError, "boom", nil)
	posts := c.FetchBoardFeed(context.Background(), 1, 10)
	if posts == nil || len(posts) != 0 {
		t.Fatalf("ожидали пустой список вместо nil, получили %v", posts)
	}
}

func TestLinkID(t *testing.T) {
	cases := map[string]string{
		"https://x/bbs/board.php?bo_table=a&wr_id=12": "12",
		"https://x/?p=5":                               "5",
		"https://x/item/345":                           "345",
		"https://x/item/345/?ref=rss":                  "345",
		"https://x/item/latest":                        "",
		"":                                             "",
	}
	for link, expected := range cases {
		if got := linkID(link); got != expected {
			t.Fatalf("linkID(%q) = %q, ожидали %q", link, got, expected)
		}
	}
}
