package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"ForexSentinel/internal/model"
)

// MaxNewsRunes caps the headline text sent as the user message.
const MaxNewsRunes = 4000

const promptHeader = `You are an expert Forex market analyst with deep knowledge of technical and fundamental analysis. Analyze the provided news and market context to:

1. Calculate strength scores (-1 to 1) for major currencies (USD, EUR, GBP, JPY, AUD, NZD, CAD, CHF) considering:
   - Central bank policies and interest rate expectations
   - Economic indicators and their impact
   - Market sentiment and risk appetite
   - Technical patterns and price action

2. Determine sentiment (bullish/bearish/neutral) based on:
   - Strength score trend
   - Market positioning
   - News impact assessment
   - Technical analysis signals

3. Identify correlations between currency pairs considering:
   - Historical price relationships
   - Common economic factors
   - Risk sentiment impact
   - Technical pattern alignment

4. Provide detailed trading recommendations based on:
   - Correlation strength and stability
   - Risk/reward scenarios
   - Entry and exit levels
   - Risk management guidelines
`

const responseShape = `Format your response as JSON with this structure:
{
  "strengths": [
    {
      "currency": "USD",
      "strength": 0.8,
      "sentiment": "bullish",
      "rationale": "Strong economic data, hawkish Fed stance, safe-haven flows"
    }
  ],
  "correlations": [
    {
      "pair1": "EUR/USD",
      "pair2": "GBP/USD",
      "strength": 0.85,
      "recommendation": "Strong positive correlation - consider parallel trades",
      "rationale": "Similar economic conditions, aligned central bank policies"
    }
  ]
}`

// BuildSystemPrompt embeds both summaries as indented JSON followed by the reply contract.
func BuildSystemPrompt(mc model.MarketContext, tf model.TechnicalFactors) (string, error) {
	ctxJSON, err := json.MarshalIndent(mc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal market context: %w", err)
	}
	tfJSON, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal technical factors: %w", err)
	}

	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("\nMarket Context Summary:\n")
	b.Write(ctxJSON)
	b.WriteString("\n\nTechnical Analysis:\n")
	b.Write(tfJSON)
	b.WriteString("\n\n")
	b.WriteString(responseShape)
	return b.String(), nil
}

// BuildNewsText joins "title\ndescription" per item with blank lines and keeps the first MaxNewsRunes runes.
func BuildNewsText(news []model.NewsItem) string {
	parts := make([]string, len(news))
	for i, n := range news {
		parts[i] = n.Title + "\n" + n.Description
	}
	text := strings.Join(parts, "\n\n")

	count := 0
	for i := range text {
		if count == MaxNewsRunes {
			return text[:i]
		}
		count++
	}
	return text
}
