package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/tickerlens/tickerlens/internal/core/store"
	"github.com/tickerlens/tickerlens/internal/output"
)

var (
	snapshotListOutput   string
	snapshotListOut      string
	snapshotListOutDir   string
	snapshotListExpired  bool
	snapshotListSymbol   string
	snapshotListProvider string
)

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, sink, err := openFormattedSink(snapshotListOutput, snapshotListOut, snapshotListOutDir, "snapshot.list")
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		query := store.SnapshotQuery{
			Expired:  snapshotListExpired,
			Symbol:   strings.TrimSpace(snapshotListSymbol),
			Provider: strings.TrimSpace(snapshotListProvider),
		}
		if query.Validate() != nil {
			query.All = true
		}

		entries, err := db.ListSnapshots(cmd.Context(), query)
		if err != nil {
			return err
		}

		if format == output.FormatJSON {
			if entries == nil {
				entries = []store.SnapshotEntry{}
			}
			payload, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(sink.writer, string(payload))
			return err
		}

		lines := []string{"Snapshots", ""}
		if len(entries) == 0 {
			lines = append(lines, "(no cached snapshots)")
			_, _ = fmt.Fprint(sink.writer, ascii.DrawBox(strings.Join(lines, "\n"), 0))
			return nil
		}

		now := time.Now()
		for _, entry := range entries {
			expiry := entry.ExpiresAt.UTC().Format(time.RFC3339)
			if entry.Expired(now) {
				expiry += " (expired)"
			}
			lines = append(lines, fmt.Sprintf("%s/%s: provider=%s status=%s expires=%s",
				entry.Symbol, entry.Kind, entry.Provider, entry.Status, expiry))
		}

		_, _ = fmt.Fprint(sink.writer, ascii.DrawBox(strings.Join(lines, "\n"), 0))
		return nil
	},
}

func init() {
	snapshotListCmd.Flags().StringVar(&snapshotListOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	snapshotListCmd.Flags().StringVar(&snapshotListOut, "out", "", "Write output to a file (default stdout)")
	snapshotListCmd.Flags().StringVar(&snapshotListOutDir, "out-dir", "", "Write output to a directory")
	snapshotListCmd.Flags().BoolVar(&snapshotListExpired, "expired", false, "Only list expired snapshots")
	snapshotListCmd.Flags().StringVar(&snapshotListSymbol, "symbol", "", "Only list snapshots for a ticker")
	snapshotListCmd.Flags().StringVar(&snapshotListProvider, "provider", "", "Only list snapshots from a provider")
}
