package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tickerlens/tickerlens/internal/core"
)

// EarningsFetcher retrieves the earnings calendar for a ticker.
type EarningsFetcher struct {
	Endpoint
}

// Fetch performs an earnings lookup.
func (f *EarningsFetcher) Fetch(ctx context.Context, symbol string) (*core.FetchResult, error) {
	return f.fetch(ctx, core.KindEarnings, symbol, "/v1/earnings", decodeEarnings)
}

// Kind returns the data kind.
func (f *EarningsFetcher) Kind() core.DataKind {
	return core.KindEarnings
}

// Provider returns the provider name.
func (f *EarningsFetcher) Provider() string {
	return f.Name
}

func decodeEarnings(resp *http.Response, result *core.FetchResult) error {
	var payload struct {
		NextReportDate string   `json:"next_report_date"`
		EPSEstimate    *float64 `json:"eps_estimate"`
		EPSActual      *float64 `json:"eps_actual"`
		FiscalPeriod   string   `json:"fiscal_period"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return err
	}

	result.Earnings = &core.Earnings{
		NextReportDate: strings.TrimSpace(payload.NextReportDate),
		EPSEstimate:    payload.EPSEstimate,
		EPSActual:      payload.EPSActual,
		FiscalPeriod:   strings.TrimSpace(payload.FiscalPeriod),
	}
	return nil
}
