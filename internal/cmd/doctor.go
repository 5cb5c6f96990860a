package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tickerlens/tickerlens/internal/appid"
	"github.com/tickerlens/tickerlens/internal/config"
	"github.com/tickerlens/tickerlens/internal/core/store"
	errwrap "github.com/tickerlens/tickerlens/internal/errors"
	"github.com/tickerlens/tickerlens/internal/observability"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long:  "Run diagnostic checks on the system and suggest fixes for common issues.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		identity := GetAppIdentity()
		bannerName := "doctor"
		if identity != nil && identity.BinaryName != "" {
			bannerName = identity.BinaryName + " doctor"
		}
		observability.CLILogger.Info("=== " + bannerName + " ===")
		observability.CLILogger.Info("")
		observability.CLILogger.Info("Running diagnostic checks...")
		observability.CLILogger.Info("")

		allChecks := true
		totalChecks := 7

		// Check 1: Go version
		goVersion := runtime.Version()
		if goVersion >= "go1.23" {
			observability.CLILogger.Info(fmt.Sprintf("[1/%d] Checking Go version... ✅ %s", totalChecks, goVersion), zap.String("go_version", goVersion))
		} else {
			observability.CLILogger.Warn(fmt.Sprintf("[1/%d] Checking Go version... ⚠️  %s (recommended: go1.23+)", totalChecks, goVersion), zap.String("go_version", goVersion))
			allChecks = false
		}

		// Check 2: Crucible and Gofulmen
		version := crucible.GetVersion()
		if version.Crucible == "" {
			observability.CLILogger.Error(fmt.Sprintf("[2/%d] Checking Crucible access... ❌ Cannot access Crucible", totalChecks))
			ExitWithCode(observability.CLILogger, foundry.ExitExternalServiceUnavailable, "Cannot access Crucible", errwrap.NewExternalServiceError("Crucible service unavailable"))
		}
		observability.CLILogger.Info(fmt.Sprintf("[2/%d] Checking Crucible access... ✅ v%s (gofulmen v%s)", totalChecks, version.Crucible, version.Gofulmen),
			zap.String("crucible_version", version.Crucible),
			zap.String("gofulmen_version", version.Gofulmen))

		// Check 3: Config directory
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			observability.CLILogger.Error(fmt.Sprintf("[3/%d] Checking config directory... ❌ Cannot resolve config directory", totalChecks))
			ExitWithCode(observability.CLILogger, foundry.ExitFileNotFound, "Cannot resolve config directory", errwrap.NewInternalError("config directory not resolved"))
		}
		observability.CLILogger.Info(fmt.Sprintf("[3/%d] Checking config directory... ✅ %s", totalChecks, filepath.Dir(configPath)), zap.String("config_dir", filepath.Dir(configPath)))

		// Check 4: Environment
		observability.CLILogger.Info(fmt.Sprintf("[4/%d] Checking environment... ✅ %s/%s", totalChecks, runtime.GOOS, runtime.GOARCH),
			zap.String("os", runtime.GOOS),
			zap.String("arch", runtime.GOARCH))

		// Check 5: Database
		cfg, cfgErr := config.Load(ctx)
		if cfgErr != nil {
			observability.CLILogger.Warn(fmt.Sprintf("[5/%d] Checking database... ⚠️  config not loaded", totalChecks), zap.Error(cfgErr))
			allChecks = false
		} else if cfg.Store.URL != "" {
			observability.CLILogger.Info(fmt.Sprintf("[5/%d] Checking database... ✅ %s (remote)", totalChecks, cfg.Store.URL),
				zap.String("db_url", cfg.Store.URL))
		} else {
			absPath := localStorePath(cfg)
			if info, statErr := os.Stat(absPath); statErr == nil {
				observability.CLILogger.Info(fmt.Sprintf("[5/%d] Checking database... ✅ %s (%s)", totalChecks, absPath, formatFileSize(info.Size())),
					zap.String("db_path", absPath),
					zap.Int64("db_size", info.Size()))
			} else if os.IsNotExist(statErr) {
				observability.CLILogger.Warn(fmt.Sprintf("[5/%d] Checking database... ⚠️  %s (not created yet)", totalChecks, absPath),
					zap.String("db_path", absPath))
			} else {
				observability.CLILogger.Warn(fmt.Sprintf("[5/%d] Checking database... ⚠️  %s (error: %v)", totalChecks, absPath, statErr),
					zap.String("db_path", absPath),
					zap.Error(statErr))
				allChecks = false
			}
		}

		// Check 6: Snapshot cache
		if cfgErr != nil {
			observability.CLILogger.Warn(fmt.Sprintf("[6/%d] Checking snapshot cache... ⚠️  skipped (config not loaded)", totalChecks))
		} else if db, storeErr := openStore(ctx); storeErr != nil {
			observability.CLILogger.Warn(fmt.Sprintf("[6/%d] Checking snapshot cache... ⚠️  cannot open store", totalChecks), zap.Error(storeErr))
			allChecks = false
		} else {
			defer db.Close() //nolint:errcheck
			total, totalErr := db.CountSnapshots(ctx, store.SnapshotQuery{All: true})
			expired, expiredErr := db.CountSnapshots(ctx, store.SnapshotQuery{Expired: true})
			switch {
			case totalErr != nil || expiredErr != nil:
				observability.CLILogger.Warn(fmt.Sprintf("[6/%d] Checking snapshot cache... ⚠️  cannot read", totalChecks))
				allChecks = false
			case expired > 0 && expired*2 > total:
				observability.CLILogger.Warn(fmt.Sprintf("[6/%d] Checking snapshot cache... ⚠️  %d entries, %d expired (run 'snapshot prune --expired')", totalChecks, total, expired))
			default:
				observability.CLILogger.Info(fmt.Sprintf("[6/%d] Checking snapshot cache... ✅ %d entries, %d expired", totalChecks, total, expired),
					zap.Int("snapshots", total),
					zap.Int("expired", expired))
			}
		}

		// Check 7: Providers
		if cfgErr != nil {
			observability.CLILogger.Warn(fmt.Sprintf("[7/%d] Checking providers... ⚠️  skipped (config not loaded)", totalChecks))
		} else if fetchers, wireErr := buildFetchers(cfg, buildGuardRegistry(cfg), nil, false); wireErr != nil {
			observability.CLILogger.Error(fmt.Sprintf("[7/%d] Checking providers... ❌ %v", totalChecks, wireErr))
			allChecks = false
		} else if len(fetchers) == 0 {
			observability.CLILogger.Warn(fmt.Sprintf("[7/%d] Checking providers... ⚠️  none configured (run 'doctor init' or see docs)", totalChecks))
			allChecks = false
		} else {
			parts := make([]string, 0, len(fetchers))
			for kind, fetcher := range fetchers {
				parts = append(parts, fmt.Sprintf("%s=%s", kind, fetcher.Provider()))
			}
			sort.Strings(parts)
			observability.CLILogger.Info(fmt.Sprintf("[7/%d] Checking providers... ✅ %s", totalChecks, strings.Join(parts, ", ")))
		}

		observability.CLILogger.Info("")
		if allChecks {
			appName := "tickerlens"
			if identity != nil && identity.BinaryName != "" {
				appName = identity.BinaryName
			}
			observability.CLILogger.Info(fmt.Sprintf("✅ All checks passed! Your %s installation is healthy.", appName))
		} else {
			observability.CLILogger.Warn("⚠️  Some checks failed. Review the output above for details.")
		}
		observability.CLILogger.Info("")
		observability.CLILogger.Info("=== End Diagnostics ===")
	},
}

var (
	doctorInitForce    bool
	doctorInitAPIKey   string
	doctorInitBaseURL  string
	doctorInitProvider string
	doctorResetConfig  bool
	doctorResetData    bool
	doctorResetAll     bool
)

var doctorInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}

		if _, err := os.Stat(configPath); err == nil && !doctorInitForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
		}

		apiKey := strings.TrimSpace(doctorInitAPIKey)
		if strings.EqualFold(apiKey, "prompt") {
			key, err := promptForValue("Enter provider API key (leave blank to skip): ")
			if err != nil {
				return err
			}
			apiKey = key
		}

		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}

		mode := os.FileMode(0644)
		if apiKey != "" {
			mode = 0600
		}

		if err := os.WriteFile(configPath, []byte(buildInitConfig(doctorInitProvider, doctorInitBaseURL, apiKey)), mode); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		observability.CLILogger.Info("Config initialized", zap.String("path", configPath))
		return nil
	},
}

var doctorConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration status and paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		dataDir := config.DefaultDataDir()

		observability.CLILogger.Info("Configuration:")
		observability.CLILogger.Info(fmt.Sprintf("  Config file:   %s (%s)", configPath, existenceStatus(fileExists(configPath))))
		if dataDir != "" {
			observability.CLILogger.Info(fmt.Sprintf("  Data directory: %s (%s)", dataDir, existenceStatus(fileExists(dataDir))))
		} else {
			observability.CLILogger.Info("  Data directory: (not resolved)")
		}

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			observability.CLILogger.Warn("Config load failed", zap.Error(err))
			return nil
		}

		if cfg.Store.URL != "" {
			observability.CLILogger.Info(fmt.Sprintf("  Database:      %s (remote)", cfg.Store.URL))
		} else {
			absPath := localStorePath(cfg)
			if info, statErr := os.Stat(absPath); statErr == nil {
				observability.CLILogger.Info(fmt.Sprintf("  Database:      %s (%s, modified %s)", absPath, formatFileSize(info.Size()), formatTimeAgo(info.ModTime())))
			} else {
				observability.CLILogger.Info(fmt.Sprintf("  Database:      %s (not created yet)", absPath))
			}
		}

		observability.CLILogger.Info("")
		observability.CLILogger.Info("Environment:")
		names := make([]string, 0, len(cfg.Providers))
		for name := range cfg.Providers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			envName := appid.EnvName(cmd.Context(), "providers", name, "api_key")
			observability.CLILogger.Info("  " + envName + ": " + envStatus(envName))
		}

		observability.CLILogger.Info("")
		observability.CLILogger.Info("Effective Settings:")
		observability.CLILogger.Info(fmt.Sprintf("  cache.enabled: %t", cfg.Cache.Enabled))
		observability.CLILogger.Info(fmt.Sprintf("  guard.max_calls_per_window: %d", cfg.Guard.MaxCallsPerWindow))
		observability.CLILogger.Info(fmt.Sprintf("  guard.failure_threshold: %d", cfg.Guard.FailureThreshold))
		return nil
	},
}

var doctorResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset user configuration and/or data",
	RunE: func(cmd *cobra.Command, args []string) error {
		if doctorResetAll {
			doctorResetConfig = true
			doctorResetData = true
		}

		if !doctorResetConfig && !doctorResetData {
			return fmt.Errorf("specify --config, --data, or --all")
		}

		if doctorResetConfig {
			configPath := config.DefaultConfigPath()
			if configPath == "" {
				observability.CLILogger.Warn("Config path not resolved; skipping config reset")
			} else if err := os.Remove(configPath); err == nil {
				observability.CLILogger.Info("Config removed", zap.String("path", configPath))
			} else if os.IsNotExist(err) {
				observability.CLILogger.Info("Config already removed", zap.String("path", configPath))
			} else {
				return fmt.Errorf("remove config file: %w", err)
			}
		}

		if doctorResetData {
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Store.URL != "" {
				return fmt.Errorf("remote store configured; database reset is not supported")
			}

			absPath := localStorePath(cfg)
			if err := os.Remove(absPath); err == nil {
				observability.CLILogger.Info("Database removed", zap.String("path", absPath))
			} else if os.IsNotExist(err) {
				observability.CLILogger.Info("Database already removed", zap.String("path", absPath))
			} else {
				return fmt.Errorf("remove database: %w", err)
			}
		}

		return nil
	},
}

var doctorValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the current config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", configPath)
		}

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			return err
		}
		if _, err := buildFetchers(cfg, buildGuardRegistry(cfg), nil, false); err != nil {
			return err
		}

		observability.CLILogger.Info("Config is valid", zap.String("path", configPath))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.AddCommand(doctorInitCmd)
	doctorCmd.AddCommand(doctorConfigCmd)
	doctorCmd.AddCommand(doctorResetCmd)
	doctorCmd.AddCommand(doctorValidateCmd)

	doctorInitCmd.Flags().BoolVar(&doctorInitForce, "force", false, "overwrite existing config file")
	doctorInitCmd.Flags().StringVar(&doctorInitAPIKey, "api-key", "", "set provider api key or use 'prompt' to enter")
	doctorInitCmd.Flags().StringVar(&doctorInitBaseURL, "base-url", "https://api.example-market.com", "provider base url")
	doctorInitCmd.Flags().StringVar(&doctorInitProvider, "provider", "marketdata", "provider name")

	doctorResetCmd.Flags().BoolVar(&doctorResetConfig, "config", false, "remove user config file")
	doctorResetCmd.Flags().BoolVar(&doctorResetData, "data", false, "remove local database")
	doctorResetCmd.Flags().BoolVar(&doctorResetAll, "all", false, "remove config and data")
}

func localStorePath(cfg *config.Config) string {
	dbPath := cfg.Store.Path
	if dbPath == "" {
		dbPath = config.DefaultStorePath()
	}
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return dbPath
	}
	return absPath
}

// formatFileSize returns a human-readable file size
func formatFileSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}

// formatTimeAgo returns a human-readable relative time
func formatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 min ago"
		}
		return fmt.Sprintf("%d mins ago", mins)
	case d < 24*time.Hour:
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}

func buildInitConfig(providerName, baseURL, apiKey string) string {
	name := strings.TrimSpace(providerName)
	if name == "" {
		name = "marketdata"
	}
	envName := appid.EnvName(context.Background(), "providers", name, "api_key")

	lines := []string{
		"# tickerlens config - created by 'tickerlens doctor init'",
		"guard:",
		"  max_calls_per_window: 100",
		"  window: 1h",
		"providers:",
		fmt.Sprintf("  %s:", name),
		"    enabled: true",
		fmt.Sprintf("    base_url: %s", strings.TrimSpace(baseURL)),
		"    kinds: [quote, earnings, sentiment]",
	}

	if strings.TrimSpace(apiKey) != "" {
		lines = append(lines, fmt.Sprintf("    api_key: %q", apiKey))
	} else {
		lines = append(lines, fmt.Sprintf("    # api_key: \"\"  # Set via %s or uncomment", envName))
	}

	return strings.Join(lines, "\n") + "\n"
}

func promptForValue(prompt string) (string, error) {
	if _, err := fmt.Fprint(os.Stdout, prompt); err != nil {
		return "", err
	}
	reader := bufio.NewReader(os.Stdin)
	value, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func existenceStatus(exists bool) string {
	if exists {
		return "exists"
	}
	return "missing"
}

func envStatus(name string) string {
	if strings.TrimSpace(os.Getenv(name)) != "" {
		return "(set)"
	}
	return "(not set)"
}
