package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ForexSentinel/internal/extractor"
	"ForexSentinel/internal/model"
)

const (
	Temperature = 0.7
	MaxTokens   = 2000
)

// Analyzer turns a news batch into currency strengths and pair correlations.
type Analyzer struct {
	Client ChatClient
	now    func() time.Time
}

func New(client ChatClient) *Analyzer {
	return &Analyzer{Client: client, now: time.Now}
}

// Analyze is all-or-nothing: it returns a complete, normalized Analysis or an *AnalysisError.
func (a *Analyzer) Analyze(ctx context.Context, news []model.NewsItem, settings model.Settings) (*model.Analysis, error) {
	var invalid []error
	if settings.APIKey == "" {
		invalid = append(invalid, ErrMissingAPIKey)
	}
	if len(news) == 0 {
		invalid = append(invalid, ErrNoNews)
	}
	if len(invalid) > 0 {
		return nil, wrap(errors.Join(invalid...))
	}

	system, err := BuildSystemPrompt(extractor.ExtractMarketContext(news), extractor.AnalyzeTechnicalFactors(news))
	if err != nil {
		return nil, wrap(err)
	}

	content, err := a.Client.Complete(ctx, ChatRequest{
		APIKey:      settings.APIKey,
		Model:       settings.Model,
		System:      system,
		User:        BuildNewsText(news),
		Temperature: Temperature,
		MaxTokens:   MaxTokens,
		JSONOutput:  true,
	})
	if err != nil {
		return nil, wrap(fmt.Errorf("chat completion: %w", err))
	}

	strengths, correlations, err := DecodeReply(content)
	if err != nil {
		return nil, wrap(err)
	}

	return &model.Analysis{
		Strengths:    strengths,
		Correlations: correlations,
		Model:        settings.Model,
		NewsCount:    len(news),
		CompletedAt:  a.now().UTC(),
	}, nil
}
