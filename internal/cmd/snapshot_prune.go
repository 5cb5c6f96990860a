package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tickerlens/tickerlens/internal/core/store"
	"github.com/tickerlens/tickerlens/internal/output"
)

var (
	snapshotPruneAll      bool
	snapshotPruneExpired  bool
	snapshotPruneSymbol   string
	snapshotPruneProvider string
	snapshotPruneYes      bool
	snapshotPruneDryRun   bool
	snapshotPruneOutput   string
	snapshotPruneOut      string
	snapshotPruneOutDir   string
)

var snapshotPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete cached snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		query := store.SnapshotQuery{
			All:      snapshotPruneAll,
			Expired:  snapshotPruneExpired,
			Symbol:   strings.TrimSpace(snapshotPruneSymbol),
			Provider: strings.TrimSpace(snapshotPruneProvider),
		}
		if err := query.Validate(); err != nil {
			return err
		}
		if query.All && !snapshotPruneYes && !snapshotPruneDryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		format, sink, err := openFormattedSink(snapshotPruneOutput, snapshotPruneOut, snapshotPruneOutDir, "snapshot.prune")
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		matched, err := db.CountSnapshots(cmd.Context(), query)
		if err != nil {
			return err
		}

		if snapshotPruneDryRun {
			return writeSnapshotPruneResult(format, sink.writer, matched, 0, true)
		}

		deleted, err := db.PruneSnapshots(cmd.Context(), query)
		if err != nil {
			return err
		}

		return writeSnapshotPruneResult(format, sink.writer, matched, deleted, false)
	},
}

func writeSnapshotPruneResult(format output.Format, w io.Writer, matched int, deleted int64, dryRun bool) error {
	result := map[string]any{
		"matched": matched,
		"deleted": deleted,
		"dry_run": dryRun,
	}

	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	if dryRun {
		_, err := fmt.Fprintf(w, "Would delete %d snapshot(s)\n", matched)
		return err
	}
	_, err := fmt.Fprintf(w, "Deleted %d/%d snapshot(s)\n", deleted, matched)
	return err
}

func init() {
	snapshotPruneCmd.Flags().BoolVar(&snapshotPruneAll, "all", false, "Delete every snapshot")
	snapshotPruneCmd.Flags().BoolVar(&snapshotPruneExpired, "expired", false, "Delete expired snapshots")
	snapshotPruneCmd.Flags().StringVar(&snapshotPruneSymbol, "symbol", "", "Delete snapshots for a ticker")
	snapshotPruneCmd.Flags().StringVar(&snapshotPruneProvider, "provider", "", "Delete snapshots from a provider")
	snapshotPruneCmd.Flags().BoolVar(&snapshotPruneYes, "yes", false, "Confirm deleting everything")
	snapshotPruneCmd.Flags().BoolVar(&snapshotPruneDryRun, "dry-run", false, "Show what would be deleted")
	snapshotPruneCmd.Flags().StringVar(&snapshotPruneOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	snapshotPruneCmd.Flags().StringVar(&snapshotPruneOut, "out", "", "Write output to a file (default stdout)")
	snapshotPruneCmd.Flags().StringVar(&snapshotPruneOutDir, "out-dir", "", "Write output to a directory")
}
