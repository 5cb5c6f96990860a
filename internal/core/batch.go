package core

import "time"

// BatchResult captures the results for a single ticker.
type BatchResult struct {
	Symbol      string         `json:"symbol"`
	Results     []*FetchResult `json:"results"`
	OK          int            `json:"ok"`
	Total       int            `json:"total"`
	Skipped     int            `json:"skipped"`
	CompletedAt time.Time      `json:"completed_at"`
}

// Summarize builds a BatchResult from individual fetch results.
func Summarize(symbol string, results []*FetchResult, completedAt time.Time) *BatchResult {
	summary := &BatchResult{
		Symbol:      symbol,
		Results:     results,
		CompletedAt: completedAt,
	}
	for _, r := range results {
		if r == nil {
			continue
		}
		summary.Total++
		switch r.Status {
		case StatusOK:
			summary.OK++
		case StatusSkipped:
			summary.Skipped++
		}
	}
	return summary
}

// Partial reports whether any call in the batch did not complete.
func (b *BatchResult) Partial() bool {
	return b != nil && b.OK < b.Total
}
