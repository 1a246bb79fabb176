package calculator

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// priceToken matches quote-like numbers such as 1.0850, 151.20 or 2350.5.
// Integers are ignored: headlines are full of years, counts and basis points.
var priceToken = regexp.MustCompile(`\b\d{1,5}\.\d{1,5}\b`)

var sentenceBreak = regexp.MustCompile(`[.!?;]\s+|\n+`)

// PriceToken is a price-like number and its byte offset in the scanned text.
type PriceToken struct {
	Value float64
	Pos   int
}

// ScanPriceTokens returns every price-like token in text, in order of appearance.
// Percentages ("2.50%") are skipped.
func ScanPriceTokens(text string) []PriceToken {
	var tokens []PriceToken
	for _, loc := range priceToken.FindAllStringIndex(text, -1) {
		if loc[1] < len(text) && text[loc[1]] == '%' {
			continue
		}
		v, err := strconv.ParseFloat(text[loc[0]:loc[1]], 64)
		if err != nil || v <= 0 {
			continue
		}
		tokens = append(tokens, PriceToken{Value: v, Pos: loc[0]})
	}
	return tokens
}

// Nearest returns the smallest distance from pos to any of the offsets, or -1 if there are none.
func Nearest(pos int, offsets []int) int {
	best := -1
	for _, o := range offsets {
		d := pos - o
		if d < 0 {
			d = -d
		}
		if best < 0 || d < best {
			best = d
		}
	}
	return best
}

// SplitSentences breaks text on sentence punctuation followed by whitespace,
// so decimal points inside prices stay intact.
func SplitSentences(text string) []string {
	parts := sentenceBreak.Split(text, -1)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Clamp bounds v to [lo, hi]. NaN maps to 0 before clamping.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		v = 0
	}
	return math.Max(lo, math.Min(hi, v))
}

// UniqueSorted returns the distinct values of levels in ascending order.
func UniqueSorted(levels []float64) []float64 {
	if len(levels) == 0 {
		return []float64{}
	}
	seen := make(map[float64]bool, len(levels))
	out := make([]float64, 0, len(levels))
	for _, l := range levels {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	sort.Float64s(out)
	return out
}
