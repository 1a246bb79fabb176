package collector

import (
	"context"
	"sync"
	"time"

	"ForexSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	mu    sync.Mutex
	Items []model.NewsItem
	Err   error
	Calls int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchNews(ctx context.Context) ([]model.NewsItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if err := ctx.Err(); err != nil {
		return nil, classifyTransportError(err)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]model.NewsItem, len(m.Items))
	copy(out, m.Items)
	return out, nil
}

// SetItems replaces the fixed result. Safe to call while fetches run.
func (m *MockFetcher) SetItems(items []model.NewsItem, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Items = items
	m.Err = err
}

// CallCount returns how many times FetchNews ran.
func (m *MockFetcher) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// Result is one completed collection pass.
type Result struct {
	Source   string
	Items    []model.NewsItem
	Started  time.Time
	Duration time.Duration
}

// Collector runs a Fetcher and times it.
type Collector struct {
	Fetcher Fetcher
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher) *Collector {
	return &Collector{Fetcher: fetcher}
}

// Collect fetches the feed once. The returned Result is non-nil even on error
// so callers can record the attempt.
func (c *Collector) Collect(ctx context.Context) (*Result, error) {
	res := &Result{Source: c.Fetcher.Name(), Started: time.Now()}
	items, err := c.Fetcher.FetchNews(ctx)
	res.Duration = time.Since(res.Started)
	if err != nil {
		return res, err
	}
	if items == nil {
		items = []model.NewsItem{}
	}
	res.Items = items
	return res, nil
}
