package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"ForexSentinel/internal/model"
)

const (
	DefaultFeedURL     = "https://www.forexlive.com/feed/news"
	DefaultProxyPrefix = "https://api.allorigins.win/raw?url="
	DefaultTimeout     = 10 * time.Second
)

// RSSFetcher implements Fetcher by pulling an RSS feed through a CORS relay.
type RSSFetcher struct {
	FeedURL     string
	ProxyPrefix string // relay prefix, the escaped feed URL is appended; empty means direct
	Client      *http.Client
	now         func() time.Time
}

// NewRSSFetcher creates a fetcher with optional outbound HTTP proxy support.
func NewRSSFetcher(feedURL, proxyPrefix string, timeout time.Duration, proxyURL string) *RSSFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RSSFetcher{
		FeedURL:     feedURL,
		ProxyPrefix: proxyPrefix,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		now: time.Now,
	}
}

func (f *RSSFetcher) Name() string { return "rss" }

func (f *RSSFetcher) requestURL() string {
	if f.ProxyPrefix == "" {
		return f.FeedURL
	}
	return f.ProxyPrefix + url.QueryEscape(f.FeedURL)
}

// FetchNews downloads and parses the feed. Every failure is a *FetchError.
func (f *RSSFetcher) FetchNews(ctx context.Context) ([]model.NewsItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.requestURL(), nil)
	if err != nil {
		return nil, newFetchError(ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Kind: ErrServer, StatusCode: resp.StatusCode}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, newFetchError(ErrEmptyFeed, nil)
	}

	items, err := ParseFeed(body, f.now())
	if err != nil {
		return nil, newFetchError(ErrFeedParse, err)
	}
	return items, nil
}

func classifyTransportError(err error) *FetchError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return newFetchError(ErrTimeout, err)
	}
	return newFetchError(ErrNetwork, fmt.Errorf("%w", unwrapURLError(err)))
}

// unwrapURLError drops the "Get <url>:" prefix so the message stays readable.
func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}
