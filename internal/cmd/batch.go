package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tickerlens/tickerlens/internal/config"
	"github.com/tickerlens/tickerlens/internal/core"
	"github.com/tickerlens/tickerlens/internal/observability"
	"github.com/tickerlens/tickerlens/internal/output"
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Fetch metadata for many tickers",
	Long: `Read tickers from a file and fetch them through the shared provider guards.

The file is either plain text (one symbol per line, # comments allowed) or a
YAML watchlist:

  profile: fundamentals
  tickers: [AAPL, MSFT, IBM]

Once a provider's circuit opens, the remaining tickers are reported as
skipped for that provider instead of being sent.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().String("profile", "", "Profile to use (default: watchlist profile, then full)")
	batchCmd.Flags().StringSlice("kinds", nil, "Data kinds to fetch; overrides --profile")
	batchCmd.Flags().String("output", "table", "Output format: table, json, markdown")
	batchCmd.Flags().Bool("complete-only", false, "Only show tickers where every fetch succeeded")
	batchCmd.Flags().Bool("no-cache", false, "Skip cache lookup")
	batchCmd.Flags().Int("concurrency", 0, "Concurrent fetches (default: workers from config)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	formatValue, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(formatValue)
	if err != nil {
		return err
	}

	completeOnly, err := cmd.Flags().GetBool("complete-only")
	if err != nil {
		return err
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}
	concurrency, err := cmd.Flags().GetInt("concurrency")
	if err != nil {
		return err
	}

	symbols, listProfile, err := readSymbolsFile(args[0])
	if err != nil {
		return err
	}

	if !cmd.Flags().Changed("profile") && listProfile != "" {
		if err := cmd.Flags().Set("profile", listProfile); err != nil {
			return err
		}
	}
	if value, _ := cmd.Flags().GetString("profile"); strings.TrimSpace(value) == "" {
		if err := cmd.Flags().Set("profile", "full"); err != nil {
			return err
		}
	}
	profile, err := resolveProfileFlags(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	startedAt := time.Now()

	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup; errors logged internally

	cfg := config.GetConfig()
	if cfg == nil {
		return errors.New("config not loaded")
	}
	if concurrency == 0 {
		concurrency = cfg.Workers
	}
	if concurrency < 1 {
		return errors.New("concurrency must be at least 1")
	}

	orchestrator, err := buildOrchestrator(cfg, buildGuardRegistry(cfg), db, !noCache)
	if err != nil {
		return err
	}

	results, err := orchestrator.FetchBatch(ctx, symbols, profile, concurrency)
	if err != nil {
		return err
	}

	if run := output.SummarizeRun(results); len(run.SkippedProviders) > 0 && observability.CLILogger != nil {
		observability.CLILogger.Warn("Providers suspended during batch",
			zap.Strings("providers", run.SkippedProviders),
			zap.Int("skipped_fetches", run.Skipped))
	}

	results = filterBatchResults(results, completeOnly)

	rendered, err := output.FormatBatchList(format, results)
	if err != nil {
		return err
	}
	if strings.TrimSpace(rendered) != "" {
		fmt.Println(rendered)
	}

	logThroughput(totalFetches(results), startedAt)
	return nil
}

func filterBatchResults(results []*core.BatchResult, completeOnly bool) []*core.BatchResult {
	if !completeOnly {
		return results
	}

	filtered := make([]*core.BatchResult, 0, len(results))
	for _, result := range results {
		if result == nil {
			continue
		}
		if result.Total > 0 && !result.Partial() {
			filtered = append(filtered, result)
		}
	}
	return filtered
}

func totalFetches(results []*core.BatchResult) int {
	total := 0
	for _, result := range results {
		if result == nil {
			continue
		}
		total += result.Total
	}
	return total
}
