package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tickerlens/tickerlens/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders batch results and guard snapshots.
type Formatter interface {
	FormatBatch(result *core.BatchResult) (string, error)
	FormatGuards(statuses []core.GuardStatus) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown):
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// RunSummary aggregates a whole batch run.
type RunSummary struct {
	Symbols          int      `json:"symbols"`
	Complete         int      `json:"complete"`
	Fetches          int      `json:"fetches"`
	OK               int      `json:"ok"`
	Skipped          int      `json:"skipped"`
	SkippedProviders []string `json:"skipped_providers,omitempty"`
}

// SummarizeRun folds per-symbol results into one RunSummary. Skipped
// providers are the ones whose circuit was open at some point in the run.
func SummarizeRun(results []*core.BatchResult) RunSummary {
	var summary RunSummary
	skipped := map[string]struct{}{}
	for _, result := range results {
		if result == nil {
			continue
		}
		summary.Symbols++
		summary.Fetches += result.Total
		summary.OK += result.OK
		summary.Skipped += result.Skipped
		if result.Total > 0 && !result.Partial() {
			summary.Complete++
		}
		for _, fetch := range result.Results {
			if fetch != nil && fetch.Status == core.StatusSkipped && fetch.Provenance.Provider != "" {
				skipped[fetch.Provenance.Provider] = struct{}{}
			}
		}
	}
	for name := range skipped {
		summary.SkippedProviders = append(summary.SkippedProviders, name)
	}
	sort.Strings(summary.SkippedProviders)
	return summary
}

func (s RunSummary) String() string {
	line := fmt.Sprintf("%d symbols, %d complete, %d/%d fetches ok", s.Symbols, s.Complete, s.OK, s.Fetches)
	if s.Skipped > 0 {
		line += fmt.Sprintf(", %d skipped (%s)", s.Skipped, strings.Join(s.SkippedProviders, ", "))
	}
	return line
}

// BatchReport is the JSON shape of a batch run.
type BatchReport struct {
	Summary RunSummary          `json:"summary"`
	Results []*core.BatchResult `json:"results"`
}

// FormatBatchList renders every symbol's results followed by the run summary.
func FormatBatchList(format Format, results []*core.BatchResult) (string, error) {
	summary := SummarizeRun(results)

	if format == FormatJSON {
		if results == nil {
			results = []*core.BatchResult{}
		}
		return (&JSONFormatter{Indent: true}).marshal(BatchReport{Summary: summary, Results: results})
	}

	formatter := NewFormatter(format)
	rendered := make([]string, 0, len(results)+1)
	for _, result := range results {
		if result == nil {
			continue
		}
		value, err := formatter.FormatBatch(result)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(value) == "" {
			continue
		}
		rendered = append(rendered, value)
	}

	footer := "Run: " + summary.String()
	if format == FormatMarkdown {
		footer = "**Run:** " + summary.String()
	}
	rendered = append(rendered, footer)

	return strings.Join(rendered, "\n\n"), nil
}
