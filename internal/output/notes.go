package output

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tickerlens/tickerlens/internal/core"
)

func statusLabel(result *core.FetchResult) string {
	if result == nil {
		return "unknown"
	}

	switch result.Status {
	case core.StatusOK:
		if result.Provenance.FromCache {
			return "ok (cached)"
		}
		return "ok"
	case core.StatusRateLimited:
		return "rate limited"
	case core.StatusSkipped:
		return "skipped"
	case core.StatusTimeout:
		return "timeout"
	case core.StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// valueSummary renders the payload of a successful result on one line.
func valueSummary(result *core.FetchResult) string {
	if result == nil || result.Status != core.StatusOK {
		return ""
	}

	switch {
	case result.Quote != nil:
		q := result.Quote
		value := fmt.Sprintf("%.2f", q.Price)
		if q.Currency != "" {
			value += " " + q.Currency
		}
		return fmt.Sprintf("%s (%+.2f%%)", value, q.ChangePercent)
	case result.Earnings != nil:
		e := result.Earnings
		parts := []string{}
		if e.NextReportDate != "" {
			parts = append(parts, "next "+e.NextReportDate)
		}
		if e.EPSEstimate != nil {
			parts = append(parts, fmt.Sprintf("est %.2f", *e.EPSEstimate))
		}
		if e.EPSActual != nil {
			parts = append(parts, fmt.Sprintf("actual %.2f", *e.EPSActual))
		}
		if len(parts) == 0 {
			return "no scheduled report"
		}
		return strings.Join(parts, ", ")
	case result.Sentiment != nil:
		s := result.Sentiment
		label := s.Label
		if label == "" {
			label = "n/a"
		}
		return fmt.Sprintf("%s (%.2f, %d articles)", label, s.Score, s.Articles)
	default:
		return ""
	}
}

func formatNotes(result *core.FetchResult) string {
	if result == nil {
		return ""
	}

	parts := []string{}
	if result.Message != "" && result.Status != core.StatusOK {
		parts = append(parts, result.Message)
	}
	if result.ExtraData != nil {
		if retry, ok := result.ExtraData["retry_after"]; ok {
			parts = append(parts, fmt.Sprintf("retry: %v", retry))
		}
	}
	if result.Quote != nil && !result.Quote.AsOf.IsZero() {
		parts = append(parts, "as of "+result.Quote.AsOf.UTC().Format(time.RFC3339))
	}
	if result.Earnings != nil && result.Earnings.FiscalPeriod != "" {
		parts = append(parts, "period: "+result.Earnings.FiscalPeriod)
	}

	return strings.Join(parts, "; ")
}

func batchSummary(result *core.BatchResult) string {
	summary := fmt.Sprintf("%d/%d ok", result.OK, result.Total)
	if result.Skipped > 0 {
		summary += fmt.Sprintf(", %d skipped", result.Skipped)
	}
	return summary
}

func cooldownLabel(status core.GuardStatus) string {
	if status.State == core.CircuitClosed {
		return "-"
	}
	remaining := time.Duration(math.Ceil(status.CooldownRemainingSeconds)) * time.Second
	if remaining <= 0 {
		return "probe ready"
	}
	return remaining.String()
}

func windowLabel(status core.GuardStatus) string {
	if status.WindowResetsAt.IsZero() {
		return "-"
	}
	return status.WindowResetsAt.UTC().Format(time.RFC3339)
}
