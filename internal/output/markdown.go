package output

import (
	"fmt"
	"strings"

	"github.com/tickerlens/tickerlens/internal/core"
)

// MarkdownFormatter renders results as a markdown table.
type MarkdownFormatter struct{}

// FormatBatch renders a batch result as Markdown.
func (f *MarkdownFormatter) FormatBatch(result *core.BatchResult) (string, error) {
	if result == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdownCell(result.Symbol)))
	sb.WriteString("| Kind | Provider | Status | Value | Notes |\n")
	sb.WriteString("|------|----------|--------|-------|-------|\n")

	for _, r := range result.Results {
		if r == nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
			escapeMarkdownCell(string(r.Kind)),
			escapeMarkdownCell(r.Provenance.Provider),
			escapeMarkdownCell(statusLabel(r)),
			escapeMarkdownCell(valueSummary(r)),
			escapeMarkdownCell(formatNotes(r)),
		))
	}

	if result.Total > 0 {
		sb.WriteString(fmt.Sprintf("\n**Completed**: %s\n", batchSummary(result)))
	}

	return sb.String(), nil
}

// FormatGuards renders guard snapshots as Markdown.
func (f *MarkdownFormatter) FormatGuards(statuses []core.GuardStatus) (string, error) {
	var sb strings.Builder
	sb.WriteString("## Provider guards\n\n")
	sb.WriteString("| Provider | State | Failures | Calls | Window Resets | Cooldown |\n")
	sb.WriteString("|----------|-------|----------|-------|---------------|----------|\n")
	for _, s := range statuses {
		sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d/%d | %s | %s |\n",
			escapeMarkdownCell(s.Provider),
			s.State,
			s.ConsecutiveFailures,
			s.CallsUsedInWindow,
			s.MaxCallsPerWindow,
			windowLabel(s),
			cooldownLabel(s),
		))
	}
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
