package analyzer

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"ForexSentinel/internal/calculator"
	"ForexSentinel/internal/model"
)

// DecodeReply parses a raw model reply into normalized records.
// Nothing beyond the two required arrays is trusted.
func DecodeReply(content string) ([]model.CurrencyStrength, []model.Correlation, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil, ErrInvalidResponse
	}
	// UseNumber keeps out-of-range numbers such as 1e400 decodable; they clamp later.
	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, nil, ErrInvalidResponse
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, nil, ErrInvalidResponse
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, nil, ErrInvalidResponse
	}

	rawStrengths, ok1 := obj["strengths"].([]any)
	rawCorrelations, ok2 := obj["correlations"].([]any)
	if !ok1 || !ok2 || len(rawStrengths) == 0 || len(rawCorrelations) == 0 {
		return nil, nil, ErrIncompleteAnalysis
	}

	strengths := make([]model.CurrencyStrength, len(rawStrengths))
	for i, v := range rawStrengths {
		rec, _ := v.(map[string]any)
		strengths[i] = NormalizeStrength(model.CurrencyStrength{
			Currency:  coerceString(rec["currency"]),
			Strength:  coerceFloat(rec["strength"]),
			Sentiment: model.Sentiment(sentimentString(rec["sentiment"])),
			Rationale: coerceString(rec["rationale"]),
		})
	}

	correlations := make([]model.Correlation, len(rawCorrelations))
	for i, v := range rawCorrelations {
		rec, _ := v.(map[string]any)
		correlations[i] = NormalizeCorrelation(model.Correlation{
			Pair1:          coerceString(rec["pair1"]),
			Pair2:          coerceString(rec["pair2"]),
			Strength:       coerceFloat(rec["strength"]),
			Recommendation: coerceString(rec["recommendation"]),
			Rationale:      coerceString(rec["rationale"]),
		})
	}
	return strengths, correlations, nil
}

// NormalizeStrength clamps the score and forces the sentiment into the enum. Idempotent.
func NormalizeStrength(s model.CurrencyStrength) model.CurrencyStrength {
	s.Strength = calculator.Clamp(s.Strength, -1, 1)
	s.Sentiment = model.ParseSentiment(string(s.Sentiment))
	return s
}

// NormalizeCorrelation clamps the score. Idempotent.
func NormalizeCorrelation(c model.Correlation) model.Correlation {
	c.Strength = calculator.Clamp(c.Strength, -1, 1)
	return c
}

// sentimentString only accepts real strings; anything else becomes neutral downstream.
func sentimentString(v any) string {
	s, _ := v.(string)
	return s
}

// coerceString treats falsy values (null, false, 0, "") as empty and stringifies the rest.
func coerceString(v any) string {
	if isFalsy(v) {
		return ""
	}
	return scriptString(v)
}

func isFalsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case json.Number:
		f, _ := numberValue(x)
		return f == 0
	case float64:
		return x == 0 || math.IsNaN(x)
	}
	return false
}

// scriptString renders a decoded JSON value the way a browser's String() would:
// arrays are joined with commas, null elements are empty and objects are opaque.
func scriptString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		f, _ := numberValue(x)
		return formatNumber(f)
	case float64:
		return formatNumber(x)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = scriptString(e)
		}
		return strings.Join(parts, ",")
	default:
		return "[object Object]"
	}
}

// numberValue parses a JSON number. Out-of-range values become ±Inf.
func numberValue(n json.Number) (float64, bool) {
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return f, true
}

var expZeros = regexp.MustCompile(`e([+-])0+(\d)`)

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	if abs := math.Abs(f); abs >= 1e21 || abs < 1e-6 {
		return expZeros.ReplaceAllString(strconv.FormatFloat(f, 'e', -1, 64), "e$1$2")
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var floatPrefix = regexp.MustCompile(`^[+-]?(?:Infinity|(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?)`)

// coerceFloat reads the leading numeric part of the value's string form
// ("0.7 (strong)" is 0.7, ["0.5"] is 0.5). Anything unparseable is 0.
func coerceFloat(v any) float64 {
	m := floatPrefix.FindString(strings.TrimSpace(scriptString(v)))
	if m == "" {
		return 0
	}
	var f float64
	switch strings.TrimLeft(m, "+-") {
	case "Infinity":
		f = math.Inf(1)
		if strings.HasPrefix(m, "-") {
			f = math.Inf(-1)
		}
	default:
		parsed, ok := numberValue(json.Number(m))
		if !ok {
			return 0
		}
		f = parsed
	}
	if math.IsNaN(f) {
		return 0
	}
	return f
}
