package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/tickerlens/tickerlens/internal/core"
)

// QuoteFetcher retrieves the latest price for a ticker.
type QuoteFetcher struct {
	Endpoint
}

// Fetch performs a quote lookup.
func (f *QuoteFetcher) Fetch(ctx context.Context, symbol string) (*core.FetchResult, error) {
	return f.fetch(ctx, core.KindQuote, symbol, "/v1/quote", decodeQuote)
}

// Kind returns the data kind.
func (f *QuoteFetcher) Kind() core.DataKind {
	return core.KindQuote
}

// Provider returns the provider name.
func (f *QuoteFetcher) Provider() string {
	return f.Name
}

func decodeQuote(resp *http.Response, result *core.FetchResult) error {
	var payload struct {
		Symbol        string  `json:"symbol"`
		Price         float64 `json:"price"`
		Currency      string  `json:"currency"`
		ChangePercent float64 `json:"change_percent"`
		Timestamp     int64   `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return err
	}

	quote := &core.Quote{
		Price:         payload.Price,
		Currency:      strings.ToUpper(strings.TrimSpace(payload.Currency)),
		ChangePercent: payload.ChangePercent,
	}
	if payload.Timestamp > 0 {
		quote.AsOf = time.Unix(payload.Timestamp, 0).UTC()
	}
	result.Quote = quote
	return nil
}
