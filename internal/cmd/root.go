package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fulmenhq/gofulmen/appidentity"
	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tickerlens/tickerlens/internal/appid"
	"github.com/tickerlens/tickerlens/internal/config"
	"github.com/tickerlens/tickerlens/internal/observability"
)

var (
	cfgFile string
	verbose bool

	appIdentity *appidentity.Identity

	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo records the build metadata injected by main.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// GetAppIdentity returns the identity loaded from .fulmen/app.yaml.
func GetAppIdentity() *appidentity.Identity {
	return appIdentity
}

var rootCmd = &cobra.Command{
	Use:   filepath.Base(os.Args[0]),
	Short: "Rate-limit aware stock metadata fetcher",
	Long: `Fetch quotes, earnings and news sentiment from rate-limited providers
without tripping their limits.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// keep config loading from emitting telemetry before serve installs
	// the real system
	if sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: false}); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	if identity, err := appid.Get(context.Background()); err == nil {
		applyIdentity(identity)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is the XDG config path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// applyIdentity updates the help surfaces from the app identity.
func applyIdentity(identity *appidentity.Identity) {
	if identity == nil {
		return
	}
	appIdentity = identity

	if identity.BinaryName != "" {
		rootCmd.Use = identity.BinaryName
	}
	if identity.Description != "" {
		rootCmd.Short = identity.Description
		rootCmd.Long = fmt.Sprintf("%s - %s", identity.BinaryName, identity.Description)
	}
	if f := rootCmd.PersistentFlags().Lookup("config"); f != nil && identity.ConfigName != "" {
		f.Usage = fmt.Sprintf("config file (default is $XDG_CONFIG_HOME/%s/config.yaml)", identity.ConfigName)
	}
}

func initConfig() {
	identity, err := appid.Get(context.Background())
	if err != nil {
		ExitWithCodeStderr(foundry.ExitFileNotFound, "Failed to load app identity from .fulmen/app.yaml", err)
	}
	applyIdentity(identity)

	observability.InitCLILogger(identity.BinaryName, verbose)
	log := observability.CLILogger

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		paths, name, err := configSearchPaths(identity)
		if err != nil {
			ExitWithCode(log, foundry.ExitFileNotFound, "Could not find home directory", err)
		}
		for _, path := range paths {
			viper.AddConfigPath(path)
		}
		viper.SetConfigName(name)
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(strings.TrimSuffix(identity.EnvPrefix, "_"))
	viper.AutomaticEnv()
	bindEnvAliases(identity.EnvPrefix)

	err = viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		log.Debug("Using config file", zap.String("path", viper.ConfigFileUsed()))
	case errors.As(err, &notFound):
		log.Debug("No config file found, using defaults and environment variables")
	default:
		log.Warn("Error reading config file", zap.Error(err))
	}

	setDefaults()
}

// configSearchPaths returns the directories searched for the config file and
// the file's base name. Without an XDG config dir it falls back to
// ~/.<config_name>.yaml.
func configSearchPaths(identity *appidentity.Identity) ([]string, string, error) {
	dir := gfconfig.GetAppConfigDir(identity.ConfigName)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, "", err
		}
		return []string{home, "./config"}, "." + identity.ConfigName, nil
	}

	paths := []string{dir}
	if identity.BinaryName != "" && identity.BinaryName != identity.ConfigName {
		if legacy := gfconfig.GetAppConfigDir(identity.BinaryName); legacy != "" {
			paths = append(paths, legacy)
		}
	}
	return append(paths, "./config"), "config", nil
}

// envAliases binds the short env names config.Load understands (PORT,
// LOG_LEVEL, ...) to the dotted keys commands read through viper.
var envAliases = map[string]string{
	"server.host":             "HOST",
	"server.port":             "PORT",
	"server.shutdown_timeout": "SHUTDOWN_TIMEOUT",
	"logging.level":           "LOG_LEVEL",
	"metrics.port":            "METRICS_PORT",
}

func bindEnvAliases(prefix string) {
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	for key, name := range envAliases {
		_ = viper.BindEnv(key, prefix+name)
	}
}

// viperDefaults mirrors config/tickerlens/v0/tickerlens-defaults.yaml for
// the keys commands read through viper before config.Load runs.
var viperDefaults = map[string]any{
	"server.host":             "localhost",
	"server.port":             8080,
	"server.read_timeout":     "30s",
	"server.write_timeout":    "30s",
	"server.idle_timeout":     "120s",
	"server.shutdown_timeout": "10s",
	"server.default_profile":  "full",

	"logging.level":   "info",
	"logging.profile": "structured",

	"store.driver":     "libsql",
	"store.url":        "",
	"store.auth_token": "",

	"cache.enabled":   true,
	"cache.ok_ttl":    "15m",
	"cache.error_ttl": "30s",

	"guard.max_calls_per_window": 100,
	"guard.window":               "1h",
	"guard.safety_margin":        1.0,
	"guard.failure_threshold":    3,
	"guard.base_cooldown":        "60s",
	"guard.backoff_factor":       2.0,
	"guard.max_cooldown":         "1h",
	"providers":                  map[string]any{},

	"metrics.enabled":     true,
	"metrics.port":        9090,
	"health.enabled":      true,
	"workers":             4,
	"debug.enabled":       false,
	"debug.pprof_enabled": false,
}

func setDefaults() {
	for key, value := range viperDefaults {
		viper.SetDefault(key, value)
	}
	viper.SetDefault("store.path", config.DefaultStorePath())
}
