package model

import "time"

// Settings are entered interactively and live only in process memory.
type Settings struct {
	APIKey string `json:"apiKey"`
	Model  string `json:"model"`
}

// CurrencyStrength is the model's view of one currency. Strength is in [-1, 1].
type CurrencyStrength struct {
	Currency  string    `json:"currency"`
	Strength  float64   `json:"strength"`
	Sentiment Sentiment `json:"sentiment"`
	Rationale string    `json:"rationale"`
}

// Correlation is the model's view of co-movement between two pairs. Strength is in [-1, 1].
type Correlation struct {
	Pair1          string  `json:"pair1"`
	Pair2          string  `json:"pair2"`
	Strength       float64 `json:"strength"`
	Recommendation string  `json:"recommendation"`
	Rationale      string  `json:"rationale"`
}

// Analysis is the normalized result of one analyzer run.
type Analysis struct {
	Strengths    []CurrencyStrength `json:"strengths"`
	Correlations []Correlation      `json:"correlations"`
	Model        string             `json:"model"`
	NewsCount    int                `json:"newsCount"`
	CompletedAt  time.Time          `json:"completedAt"`
}

// MarketContext groups news items by fundamental theme. Buckets may overlap.
type MarketContext struct {
	MonetaryPolicy     []NewsItem `json:"monetaryPolicy"`
	EconomicData       []NewsItem `json:"economicData"`
	GeopoliticalEvents []NewsItem `json:"geopoliticalEvents"`
	MarketSentiment    []NewsItem `json:"marketSentiment"`
}

// BreakoutSignal is a breakout-style mention found in a news item.
type BreakoutSignal struct {
	Type      string    `json:"type"`
	Direction Sentiment `json:"direction"`
	Source    NewsItem  `json:"source"`
}

// TechnicalFactors are heuristics pulled from headline text, not from price data.
type TechnicalFactors struct {
	SupportLevels    []float64        `json:"supportLevels"`
	ResistanceLevels []float64        `json:"resistanceLevels"`
	TrendPatterns    []string         `json:"trendPatterns"`
	BreakoutSignals  []BreakoutSignal `json:"breakoutSignals"`
}
