package notifier

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"ForexSentinel/internal/model"
)

// Status is the summary shown by /status.
type Status struct {
	NewsCount     int
	NewsUpdatedAt *time.Time
	NewsLoading   bool
	Model         string
	HasAPIKey     bool
	Analyzing     bool
	LastAnalysis  *model.Analysis
	Error         string
}

const barWidth = 10

// FormatAnalysisReport formats strengths and correlations into a Telegram message.
func FormatAnalysisReport(a *model.Analysis) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("💱 <b>ForexSentinel analysis</b> | %s\n", a.CompletedAt.Format("2006-01-02 15:04 MST")))
	b.WriteString(fmt.Sprintf("Model: %s | News items: %d\n\n", html.EscapeString(a.Model), a.NewsCount))

	b.WriteString("📊 <b>Currency strength</b>\n<pre>")
	for _, s := range a.Strengths {
		b.WriteString(fmt.Sprintf("%-4s %+.2f %s %s\n",
			html.EscapeString(s.Currency), s.Strength, strengthBar(s.Strength), s.Sentiment))
	}
	b.WriteString("</pre>\n")

	b.WriteString("🔗 <b>Correlations</b>\n")
	for _, c := range a.Correlations {
		b.WriteString(fmt.Sprintf("• %s / %s: %+.2f\n", html.EscapeString(c.Pair1), html.EscapeString(c.Pair2), c.Strength))
		if c.Recommendation != "" {
			b.WriteString(fmt.Sprintf("  %s\n", html.EscapeString(c.Recommendation)))
		}
	}
	return b.String()
}

// strengthBar renders |v| as a fixed-width bar, e.g. "▰▰▰▰▰▰▱▱▱▱" for ±0.6.
func strengthBar(v float64) string {
	filled := int(math.Round(math.Abs(v) * barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	return strings.Repeat("▰", filled) + strings.Repeat("▱", barWidth-filled)
}

// FormatNews lists up to limit headlines with links.
func FormatNews(items []model.NewsItem, limit int) string {
	if len(items) == 0 {
		return "📰 No news loaded yet."
	}
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("📰 <b>Latest forex news</b> (%d of %d)\n\n", limit, len(items)))
	for _, it := range items[:limit] {
		b.WriteString(fmt.Sprintf("%s <a href=\"%s\">%s</a>\n", impactIcon(it.Impact),
			html.EscapeString(it.Link), html.EscapeString(it.Title)))
		b.WriteString(fmt.Sprintf("   %s · %s · %s\n", it.Category, it.Sentiment, publishedAt(it.PubDate)))
	}
	return b.String()
}

func impactIcon(i model.Impact) string {
	switch i {
	case model.ImpactHigh:
		return "🔴"
	case model.ImpactMedium:
		return "🟠"
	default:
		return "⚪"
	}
}

func publishedAt(pubDate string) string {
	t, err := time.Parse(time.RFC3339, pubDate)
	if err != nil {
		return pubDate
	}
	return t.Format("01-02 15:04")
}

// FormatError formats a stage failure alert.
func FormatError(stage, msg string) string {
	return fmt.Sprintf("❌ <b>%s failed</b>\n\n%s", html.EscapeString(stage), html.EscapeString(msg))
}

// FormatStatus formats the current pipeline state for display.
func FormatStatus(st Status) string {
	var b strings.Builder
	b.WriteString("📦 <b>Status</b>\n\n")

	b.WriteString(fmt.Sprintf("News items: %d", st.NewsCount))
	if st.NewsLoading {
		b.WriteString(" (refreshing)")
	}
	b.WriteString("\n")
	if st.NewsUpdatedAt != nil {
		b.WriteString(fmt.Sprintf("Last fetch: %s\n", st.NewsUpdatedAt.Format("2006-01-02 15:04:05")))
	}

	b.WriteString(fmt.Sprintf("Model: %s\n", html.EscapeString(st.Model)))
	key := "missing"
	if st.HasAPIKey {
		key = "set"
	}
	b.WriteString(fmt.Sprintf("API key: %s\n", key))

	switch {
	case st.Analyzing:
		b.WriteString("Analysis: running\n")
	case st.LastAnalysis != nil:
		b.WriteString(fmt.Sprintf("Analysis: %s (%d strengths, %d correlations)\n",
			st.LastAnalysis.CompletedAt.Format("2006-01-02 15:04:05"),
			len(st.LastAnalysis.Strengths), len(st.LastAnalysis.Correlations)))
	default:
		b.WriteString("Analysis: none\n")
	}

	if st.Error != "" {
		b.WriteString(fmt.Sprintf("\n⚠️ %s\n", html.EscapeString(st.Error)))
	}
	return b.String()
}

// FormatHelp lists the supported commands.
func FormatHelp(models []string) string {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	b.WriteString("• /news latest headlines\n")
	b.WriteString("• /analysis latest currency analysis\n")
	b.WriteString("• /refresh fetch the feed now\n")
	b.WriteString("• /status pipeline status\n")
	b.WriteString("• /model &lt;id&gt; switch model\n")
	if len(models) > 0 {
		b.WriteString("\nModels: " + html.EscapeString(strings.Join(models, ", ")) + "\n")
	}
	b.WriteString("\nThe API key can only be set from the dashboard.")
	return b.String()
}
