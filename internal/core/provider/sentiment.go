package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tickerlens/tickerlens/internal/core"
)

// Scores at or beyond these bounds are labelled bullish/bearish.
const (
	bullishThreshold = 0.15
	bearishThreshold = -0.15
)

// SentimentFetcher retrieves aggregated news sentiment for a ticker.
type SentimentFetcher struct {
	Endpoint
}

// Fetch performs a sentiment lookup.
func (f *SentimentFetcher) Fetch(ctx context.Context, symbol string) (*core.FetchResult, error) {
	return f.fetch(ctx, core.KindSentiment, symbol, "/v1/sentiment", decodeSentiment)
}

// Kind returns the data kind.
func (f *SentimentFetcher) Kind() core.DataKind {
	return core.KindSentiment
}

// Provider returns the provider name.
func (f *SentimentFetcher) Provider() string {
	return f.Name
}

func decodeSentiment(resp *http.Response, result *core.FetchResult) error {
	var payload struct {
		Score    float64 `json:"score"`
		Articles int     `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return err
	}
	if payload.Score < -1 || payload.Score > 1 {
		return fmt.Errorf("score %v out of range", payload.Score)
	}

	result.Sentiment = &core.Sentiment{
		Score:    payload.Score,
		Label:    SentimentLabel(payload.Score),
		Articles: payload.Articles,
	}
	return nil
}

// SentimentLabel maps a score in [-1, 1] to bullish, bearish or neutral.
func SentimentLabel(score float64) string {
	switch {
	case score >= bullishThreshold:
		return "bullish"
	case score <= bearishThreshold:
		return "bearish"
	default:
		return "neutral"
	}
}
