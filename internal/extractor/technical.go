package extractor

import (
	"ForexSentinel/internal/calculator"
	"ForexSentinel/internal/model"
)

var (
	supportWords    = newMatcher("support", "supports", "floor", "bids", "bid", "low", "lows", "bottom", "demand zone")
	resistanceWords = newMatcher("resistance", "ceiling", "offers", "offer", "high", "highs", "top", "supply zone", "cap")

	breakoutWords  = newMatcher("breakout", "breaks above", "broke above", "breaks through", "clears", "pierces", "breaches")
	breakdownWords = newMatcher("breakdown", "breaks below", "broke below", "breaks down", "falls through", "slips below")
	reversalWords  = newMatcher("reversal", "reverses", "reversed", "u-turn", "pares gains", "pares losses")
)

// trendCatalog is checked in order; labels are reported in first-appearance order across items.
var trendCatalog = []struct {
	label string
	m     matcher
}{
	{"uptrend", newMatcher("uptrend", "higher highs", "higher lows", "bullish trend")},
	{"downtrend", newMatcher("downtrend", "lower highs", "lower lows", "bearish trend")},
	{"range", newMatcher("range-bound", "rangebound", "range bound", "consolidation", "consolidates", "sideways", "choppy")},
	{"head and shoulders", newMatcher("head and shoulders", "head-and-shoulders")},
	{"double top", newMatcher("double top", "double-top")},
	{"double bottom", newMatcher("double bottom", "double-bottom")},
	{"triangle", newMatcher("triangle")},
	{"wedge", newMatcher("wedge")},
	{"flag", newMatcher("bull flag", "bear flag", "flag pattern")},
	{"channel", newMatcher("channel")},
}

// AnalyzeTechnicalFactors scans each item's sentences for price levels,
// chart-pattern vocabulary and breakout wording.
func AnalyzeTechnicalFactors(news []model.NewsItem) model.TechnicalFactors {
	var supports, resistances []float64
	patterns := []string{}
	seenPattern := map[string]bool{}
	signals := []model.BreakoutSignal{}

	for _, item := range news {
		text := item.Title + ". " + item.Description

		for _, sentence := range calculator.SplitSentences(text) {
			tokens := calculator.ScanPriceTokens(sentence)
			if len(tokens) == 0 {
				continue
			}
			supportAt := supportWords.offsets(sentence)
			resistanceAt := resistanceWords.offsets(sentence)
			for _, tok := range tokens {
				ds := calculator.Nearest(tok.Pos, supportAt)
				dr := calculator.Nearest(tok.Pos, resistanceAt)
				switch {
				case ds >= 0 && (dr < 0 || ds < dr):
					supports = append(supports, tok.Value)
				case dr >= 0 && (ds < 0 || dr < ds):
					resistances = append(resistances, tok.Value)
				}
			}
		}

		for _, tp := range trendCatalog {
			if !seenPattern[tp.label] && tp.m.match(text) {
				seenPattern[tp.label] = true
				patterns = append(patterns, tp.label)
			}
		}

		if sig, ok := detectBreakout(item, text); ok {
			signals = append(signals, sig)
		}
	}

	return model.TechnicalFactors{
		SupportLevels:    calculator.UniqueSorted(supports),
		ResistanceLevels: calculator.UniqueSorted(resistances),
		TrendPatterns:    patterns,
		BreakoutSignals:  signals,
	}
}

func detectBreakout(item model.NewsItem, text string) (model.BreakoutSignal, bool) {
	var kind string
	switch {
	case breakoutWords.match(text):
		kind = "breakout"
	case breakdownWords.match(text):
		kind = "breakdown"
	case reversalWords.match(text):
		kind = "reversal"
	default:
		return model.BreakoutSignal{}, false
	}

	direction := TagSentiment(item.Title, item.Description)
	switch kind {
	case "breakout":
		if direction == model.SentimentNeutral {
			direction = model.SentimentBullish
		}
	case "breakdown":
		if direction == model.SentimentNeutral {
			direction = model.SentimentBearish
		}
	}
	return model.BreakoutSignal{Type: kind, Direction: direction, Source: item}, true
}
