package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/tickerlens/tickerlens/internal/core"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatBatch renders a batch result as a table.
func (f *TableFormatter) FormatBatch(result *core.BatchResult) (string, error) {
	if result == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle(result.Symbol)
	t.AppendHeader(table.Row{"Kind", "Provider", "Status", "Value", "Notes"})

	for _, r := range result.Results {
		if r == nil {
			continue
		}
		t.AppendRow(table.Row{
			string(r.Kind),
			r.Provenance.Provider,
			statusLabel(r),
			valueSummary(r),
			formatNotes(r),
		})
	}

	if result.Total > 0 {
		t.AppendFooter(table.Row{"", "", batchSummary(result), "", ""})
	}

	return t.Render(), nil
}

// FormatGuards renders guard snapshots as a table.
func (f *TableFormatter) FormatGuards(statuses []core.GuardStatus) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Provider", "State", "Failures", "Calls", "Window Resets", "Cooldown"})

	for _, s := range statuses {
		t.AppendRow(table.Row{
			s.Provider,
			string(s.State),
			s.ConsecutiveFailures,
			fmt.Sprintf("%d/%d", s.CallsUsedInWindow, s.MaxCallsPerWindow),
			windowLabel(s),
			cooldownLabel(s),
		})
	}
	if len(statuses) == 0 {
		t.AppendRow(table.Row{"(no guards)", "", "", "", "", ""})
	}

	return t.Render(), nil
}
