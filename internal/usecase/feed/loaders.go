package feed

import (
	"context"
	"time"

	"content-gateway/internal/domain"
)

// CategoryLoader листает одну категорию CMS, при date != nil только за этот день.
func CategoryLoader(source domain.ContentSource, categoryID int, date *time.Time) Loader {
	return func(ctx context.Context, page, pageSize int) ([]domain.Post, error) {
		return source.FetchByCategory(ctx, domain.CategoryQuery{
			CategoryID: categoryID,
			Page:       page,
			PageSize:   pageSize,
			Date:       date,
		})
	}
}

// SearchLoader листает выдачу поиска. Размер страницы задаёт CMS,
// поэтому ленту нужно создавать с тем же pageSize.
func SearchLoader(source domain.ContentSource, query string) Loader {
	return func(ctx context.Context, page, _ int) ([]domain.Post, error) {
		return source.Search(ctx, query, page)
	}
}

// BoardLoader листает RSS доски. Лента доски не возвращает ошибок.
func BoardLoader(board domain.BoardFeed) Loader {
	return func(ctx context.Context, page, pageSize int) ([]domain.Post, error) {
		return board.FetchBoardFeed(ctx, page, pageSize), nil
	}
}
