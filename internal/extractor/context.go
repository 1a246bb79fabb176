package extractor

import "ForexSentinel/internal/model"

// ExtractMarketContext sorts items into the four fundamental buckets.
// An item lands in every bucket it matches; input order is kept.
func ExtractMarketContext(news []model.NewsItem) model.MarketContext {
	ctx := model.MarketContext{
		MonetaryPolicy:     []model.NewsItem{},
		EconomicData:       []model.NewsItem{},
		GeopoliticalEvents: []model.NewsItem{},
		MarketSentiment:    []model.NewsItem{},
	}
	for _, item := range news {
		text := item.Title + " " + item.Description
		if monetaryWords.match(text) {
			ctx.MonetaryPolicy = append(ctx.MonetaryPolicy, item)
		}
		if economicWords.match(text) {
			ctx.EconomicData = append(ctx.EconomicData, item)
		}
		if geopoliticalWords.match(text) {
			ctx.GeopoliticalEvents = append(ctx.GeopoliticalEvents, item)
		}
		if sentimentWords.match(text) {
			ctx.MarketSentiment = append(ctx.MarketSentiment, item)
		}
	}
	return ctx
}
