package collector

import (
	"context"

	"ForexSentinel/internal/model"
)

// Fetcher defines the interface for fetching the news feed.
type Fetcher interface {
	FetchNews(ctx context.Context) ([]model.NewsItem, error)
	Name() string
}
