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

var fetchCmd = &cobra.Command{
	Use:   "fetch <symbol>",
	Short: "Fetch metadata for one ticker",
	Long:  "Fetch quote, earnings and sentiment for a ticker through the guarded provider clients",
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().String("profile", "full", "Profile to use (full, prices, fundamentals)")
	fetchCmd.Flags().StringSlice("kinds", nil, "Data kinds to fetch (quote, earnings, sentiment); overrides --profile")
	fetchCmd.Flags().String("output", "table", "Output format: table, json, markdown")
	fetchCmd.Flags().Bool("no-cache", false, "Skip cache lookup")
}

func runFetch(cmd *cobra.Command, args []string) error {
	symbol, err := normalizeSymbolArg(args[0])
	if err != nil {
		return err
	}

	profile, err := resolveProfileFlags(cmd)
	if err != nil {
		return err
	}

	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}

	formatValue, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(formatValue)
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

	orchestrator, err := buildOrchestrator(cfg, buildGuardRegistry(cfg), db, !noCache)
	if err != nil {
		return err
	}

	results, err := orchestrator.Fetch(ctx, symbol, profile)
	if err != nil {
		return err
	}

	batch := core.Summarize(symbol, results, time.Now().UTC())
	rendered, err := output.NewFormatter(format).FormatBatch(batch)
	if err != nil {
		return err
	}
	if rendered != "" {
		fmt.Println(rendered)
	}

	if format != output.FormatJSON {
		logThroughput(batch.Total, startedAt)
	}
	return nil
}

// resolveProfileFlags reads --kinds, falling back to --profile.
func resolveProfileFlags(cmd *cobra.Command) (core.Profile, error) {
	kindValues, err := cmd.Flags().GetStringSlice("kinds")
	if err != nil {
		return core.Profile{}, err
	}
	if len(kindValues) > 0 {
		kinds, err := core.ParseKinds(kindValues)
		if err != nil {
			return core.Profile{}, err
		}
		if len(kinds) == 0 {
			return core.Profile{}, errors.New("at least one data kind is required")
		}
		return core.Profile{Name: "custom", Kinds: kinds}, nil
	}

	profileName, err := cmd.Flags().GetString("profile")
	if err != nil {
		return core.Profile{}, err
	}
	if strings.TrimSpace(profileName) == "" {
		return core.Profile{}, errors.New("profile is required")
	}
	return core.LookupProfile(profileName)
}

func logThroughput(count int, startedAt time.Time) {
	if count <= 0 || observability.CLILogger == nil {
		return
	}
	elapsed := time.Since(startedAt)
	if elapsed <= 0 {
		return
	}
	rate := float64(count) / elapsed.Seconds()
	observability.CLILogger.Info(
		"Fetch throughput",
		zap.Int("fetches", count),
		zap.Duration("elapsed", elapsed),
		zap.Float64("rate_per_sec", rate),
	)
}
