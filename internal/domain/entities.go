package domain

import "time"

// Post — нормализованная единица контента из CMS или RSS-ленты доски.
type Post struct {
	ID               string    `json:"id"`
	SourceID         int       `json:"source_id,omitempty"`
	Title            string    `json:"title"`
	Excerpt          string    `json:"excerpt"`
	Content          string    `json:"content"`
	Date             string    `json:"date"`
	PublishedAt      time.Time `json:"published_at"`
	FeaturedImageURL string    `json:"featured_image_url,omitempty"`
	Category         string    `json:"category"`
	Source           string    `json:"source"`
	Link             string    `json:"link"`
	Categories       []int     `json:"categories,omitempty"`
}

// SectionDef описывает настроенную категорию для сетки главной или новостей.
type SectionDef struct {
	Key        string `json:"key" yaml:"key"`
	Name       string `json:"name" yaml:"name"`
	CategoryID int    `json:"category_id" yaml:"category_id"`
}

// Section — одна категория с не более чем четырьмя представительными постами.
type Section struct {
	Key        string `json:"key"`
	Name       string `json:"name"`
	CategoryID int    `json:"category_id"`
	Posts      []Post `json:"posts"`
}

// HomeData — агрегированные данные экрана: секции и слайдшоу.
type HomeData struct {
	Sections         []Section `json:"sections"`
	Slideshow        []Post    `json:"slideshow"`
	ShowingYesterday bool      `json:"showing_yesterday,omitempty"`
}

// Snapshot — сохранённая копия данных с моментом записи.
type Snapshot[T any] struct {
	Data      T     `json:"data"`
	Timestamp int64 `json:"timestamp"`
}

// Fresh сообщает, что снимок ещё не старше ttl на момент now.
func (s Snapshot[T]) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(time.UnixMilli(s.Timestamp)) < ttl
}

// TranslationEntry — закэшированный перевод строки.
type TranslationEntry struct {
	Text      string `json:"text"`
	Source    string `json:"source"`
	Timestamp int64  `json:"timestamp"`
}

// CategoryQuery — параметры постраничного запроса категории.
type CategoryQuery struct {
	CategoryID int
	Page       int
	PageSize   int
	Date       *time.Time
}

// Category — рубрика CMS.
type Category struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Count int    `json:"count"`
}

// PageResult — страница ленты и признак возможного продолжения.
type PageResult struct {
	Posts   []Post `json:"posts"`
	HasMore bool   `json:"has_more"`
}

// HasMore: неполная страница означает конец ленты, полная — что продолжение возможно.
func HasMore(got, pageSize int) bool {
	return got >= pageSize
}

// Recipient — участник чата с настройками уведомлений.
type Recipient struct {
	UserID               string
	DisplayName          string
	FCMToken             string
	ExpoPushToken        string
	NotificationsEnabled bool
}

// PushMessage — уведомление для одного получателя.
type PushMessage struct {
	Title string
	Body  string
	Data  map[string]string
}
