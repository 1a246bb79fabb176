package collector

import (
	"bytes"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"ForexSentinel/internal/extractor"
	"ForexSentinel/internal/model"
)

// ParseFeed turns an RSS/Atom document into tagged news items, in feed order.
// Items without a title or link are dropped. now stamps items that carry no date.
func ParseFeed(body []byte, now time.Time) ([]model.NewsItem, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	items := make([]model.NewsItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		title := plainText(it.Title)
		link := strings.TrimSpace(it.Link)
		if title == "" || link == "" {
			continue
		}
		desc := plainText(it.Description)
		if desc == "" {
			desc = plainText(it.Content)
		}
		if desc == "" {
			desc = title
		}

		category := extractor.Categorize(title, desc)
		if category == extractor.CategoryGeneral && len(it.Categories) > 0 {
			if c := strings.TrimSpace(it.Categories[0]); c != "" {
				category = strings.ToLower(c)
			}
		}

		items = append(items, model.NewsItem{
			Title:       title,
			Description: desc,
			Link:        link,
			PubDate:     pubDate(it, now),
			Sentiment:   extractor.TagSentiment(title, desc),
			Impact:      extractor.TagImpact(title, desc),
			Category:    category,
		})
	}
	return items, nil
}

func pubDate(it *gofeed.Item, now time.Time) string {
	t := now
	switch {
	case it.PublishedParsed != nil:
		t = *it.PublishedParsed
	case it.UpdatedParsed != nil:
		t = *it.UpdatedParsed
	}
	return t.UTC().Format(time.RFC3339)
}

// plainText strips markup and collapses whitespace.
func plainText(s string) string {
	if s == "" {
		return ""
	}
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}
