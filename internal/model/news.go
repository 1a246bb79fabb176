package model

// Sentiment is the directional tone of a news item or a currency.
type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

// ParseSentiment maps any unrecognized value to neutral.
func ParseSentiment(v string) Sentiment {
	switch Sentiment(v) {
	case SentimentBullish, SentimentBearish, SentimentNeutral:
		return Sentiment(v)
	default:
		return SentimentNeutral
	}
}

// Impact is the expected market impact of a news item.
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// NewsItem is a single parsed feed entry. PubDate is RFC 3339.
type NewsItem struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Link        string    `json:"link"`
	PubDate     string    `json:"pubDate"`
	Sentiment   Sentiment `json:"sentiment"`
	Impact      Impact    `json:"impact"`
	Category    string    `json:"category"`
}
