package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tickerlens/tickerlens/internal/config"
	errwrap "github.com/tickerlens/tickerlens/internal/errors"
	"github.com/tickerlens/tickerlens/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Verify that the binary, configuration and provider wiring are usable without calling any provider.",
	Run: func(cmd *cobra.Command, args []string) {
		if observability.CLILogger == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errwrap.NewConfigInvalidError("Logger not initialized"))
			return
		}
		logger := observability.CLILogger
		logger.Info("Running health check...")

		if versionInfo.Version == "" {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		logger.Info("✅ Version information available", zap.String("version", versionInfo.Version))

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Configuration failed to load", errwrap.WrapConfigInvalid(cmd.Context(), err, "configuration failed to load"))
			return
		}
		logger.Info("✅ Configuration loaded")

		registry := buildGuardRegistry(cfg)
		fetchers, err := buildFetchers(cfg, registry, nil, false)
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Provider configuration invalid", errwrap.WrapConfigInvalid(cmd.Context(), err, "provider configuration invalid"))
			return
		}
		if len(fetchers) == 0 {
			logger.Warn("⚠️  No providers configured; fetch and batch will fail")
		} else {
			logger.Info("✅ Providers wired", zap.Int("kinds", len(fetchers)))
		}

		logger.Info("")
		logger.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
