package core

import "time"

// DataKind identifies the kind of stock metadata a provider returns.
type DataKind string

const (
	KindQuote     DataKind = "quote"
	KindEarnings  DataKind = "earnings"
	KindSentiment DataKind = "sentiment"
)

// AllKinds lists every supported data kind in fetch order.
var AllKinds = []DataKind{KindQuote, KindEarnings, KindSentiment}

// FetchStatus represents the outcome of a single provider call.
type FetchStatus string

const (
	StatusOK          FetchStatus = "ok"
	StatusRateLimited FetchStatus = "rate_limited"
	// StatusSkipped marks calls refused by an open circuit; nothing was sent.
	StatusSkipped FetchStatus = "skipped"
	StatusTimeout FetchStatus = "timeout"
	StatusError   FetchStatus = "error"
)

// Provenance captures metadata about how a result was obtained.
type Provenance struct {
	FetchID        string     `json:"fetch_id"`
	RequestedAt    time.Time  `json:"requested_at"`
	ResolvedAt     time.Time  `json:"resolved_at"`
	Provider       string     `json:"provider"`
	Server         string     `json:"server,omitempty"`
	FromCache      bool       `json:"from_cache"`
	CacheExpiresAt *time.Time `json:"cache_expires_at,omitempty"`
	ToolVersion    string     `json:"tool_version"`
}

// Quote is the latest price for a ticker.
type Quote struct {
	Price         float64   `json:"price"`
	Currency      string    `json:"currency,omitempty"`
	ChangePercent float64   `json:"change_percent"`
	AsOf          time.Time `json:"as_of,omitempty"`
}

// Earnings describes the next scheduled and most recent reported earnings.
type Earnings struct {
	NextReportDate string   `json:"next_report_date,omitempty"`
	EPSEstimate    *float64 `json:"eps_estimate,omitempty"`
	EPSActual      *float64 `json:"eps_actual,omitempty"`
	FiscalPeriod   string   `json:"fiscal_period,omitempty"`
}

// Sentiment summarizes news sentiment for a ticker in [-1, 1].
type Sentiment struct {
	Score    float64 `json:"score"`
	Label    string  `json:"label,omitempty"`
	Articles int     `json:"articles"`
}

// FetchResult reports one provider call for one ticker.
type FetchResult struct {
	Symbol     string         `json:"symbol"`
	Kind       DataKind       `json:"kind"`
	Status     FetchStatus    `json:"status"`
	StatusCode int            `json:"status_code,omitempty"`
	Message    string         `json:"message,omitempty"`
	Quote      *Quote         `json:"quote,omitempty"`
	Earnings   *Earnings      `json:"earnings,omitempty"`
	Sentiment  *Sentiment     `json:"sentiment,omitempty"`
	ExtraData  map[string]any `json:"extra_data,omitempty"`
	Provenance Provenance     `json:"provenance"`
}
