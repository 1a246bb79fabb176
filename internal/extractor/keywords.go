package extractor

import (
	"regexp"
	"strings"

	"ForexSentinel/internal/model"
)

// Bucket names double as NewsItem categories.
const (
	CategoryMonetaryPolicy = "monetary-policy"
	CategoryEconomicData   = "economic-data"
	CategoryGeopolitical   = "geopolitical"
	CategorySentiment      = "market-sentiment"
	CategoryGeneral        = "general"
)

// matcher is a case-insensitive, word-boundary alternation over a keyword list.
type matcher struct {
	re *regexp.Regexp
}

func newMatcher(words ...string) matcher {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return matcher{re: regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)}
}

func (m matcher) match(text string) bool { return m.re.MatchString(text) }

func (m matcher) count(text string) int { return len(m.re.FindAllStringIndex(text, -1)) }

// offsets returns the start offset of every match.
func (m matcher) offsets(text string) []int {
	locs := m.re.FindAllStringIndex(text, -1)
	out := make([]int, len(locs))
	for i, l := range locs {
		out[i] = l[0]
	}
	return out
}

var (
	monetaryWords = newMatcher(
		"fed", "fomc", "federal reserve", "ecb", "boe", "bank of england", "boj", "bank of japan",
		"rba", "rbnz", "snb", "boc", "bank of canada", "central bank", "interest rate", "interest rates",
		"rate hike", "rate hikes", "rate cut", "rate cuts", "rate decision", "monetary policy",
		"hawkish", "dovish", "powell", "lagarde", "bailey", "ueda", "quantitative easing",
		"quantitative tightening", "qe", "qt", "balance sheet", "forward guidance", "policy rate",
	)
	economicWords = newMatcher(
		"cpi", "ppi", "pce", "inflation", "gdp", "nfp", "non-farm", "nonfarm", "payrolls",
		"unemployment", "jobless claims", "employment", "retail sales", "pmi", "ism",
		"trade balance", "current account", "industrial production", "consumer confidence",
		"durable goods", "housing starts", "building permits", "economic data", "wages", "earnings",
	)
	geopoliticalWords = newMatcher(
		"war", "conflict", "sanctions", "tariff", "tariffs", "trade war", "election", "elections",
		"military", "missile", "invasion", "ceasefire", "geopolitical", "tensions", "ukraine",
		"russia", "middle east", "israel", "iran", "north korea", "taiwan", "brexit", "coup", "summit",
	)
	sentimentWords = newMatcher(
		"risk-on", "risk on", "risk-off", "risk off", "risk appetite", "risk aversion", "safe haven",
		"safe-haven", "sentiment", "sell-off", "selloff", "rally", "rallies", "panic", "fear",
		"optimism", "pessimism", "volatility", "vix", "equities", "stocks", "flight to safety",
	)

	bullishWords = newMatcher(
		"rise", "rises", "rising", "rose", "gain", "gains", "gained", "rally", "rallies", "surge",
		"surges", "jumps", "climbs", "higher", "strong", "stronger", "strengthens", "beat", "beats",
		"hawkish", "upbeat", "rebound", "rebounds", "bid", "bullish",
	)
	bearishWords = newMatcher(
		"fall", "falls", "falling", "fell", "drop", "drops", "dropped", "slump", "slumps", "plunge",
		"plunges", "slides", "declines", "lower", "weak", "weaker", "weakens", "miss", "misses",
		"dovish", "downbeat", "selloff", "sell-off", "offered", "bearish",
	)

	highImpactWords = newMatcher(
		"rate decision", "fomc", "nfp", "non-farm", "nonfarm", "payrolls", "cpi", "gdp",
		"rate hike", "rate cut", "intervention", "emergency", "war", "invasion",
	)
)

// Categorize returns the first bucket the item's text falls into, or "general".
func Categorize(title, description string) string {
	text := title + " " + description
	switch {
	case monetaryWords.match(text):
		return CategoryMonetaryPolicy
	case economicWords.match(text):
		return CategoryEconomicData
	case geopoliticalWords.match(text):
		return CategoryGeopolitical
	case sentimentWords.match(text):
		return CategorySentiment
	default:
		return CategoryGeneral
	}
}

// TagSentiment weighs bullish against bearish wording.
func TagSentiment(title, description string) model.Sentiment {
	text := title + " " + description
	up, down := bullishWords.count(text), bearishWords.count(text)
	switch {
	case up > down:
		return model.SentimentBullish
	case down > up:
		return model.SentimentBearish
	default:
		return model.SentimentNeutral
	}
}

// TagImpact: top-tier releases and shocks are high, any other fundamental theme is medium.
func TagImpact(title, description string) model.Impact {
	text := title + " " + description
	switch {
	case highImpactWords.match(text):
		return model.ImpactHigh
	case monetaryWords.match(text), economicWords.match(text), geopoliticalWords.match(text):
		return model.ImpactMedium
	default:
		return model.ImpactLow
	}
}
