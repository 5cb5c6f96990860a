package cmd

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"

	"github.com/tickerlens/tickerlens/internal/config"
	"github.com/tickerlens/tickerlens/internal/observability"
)

type infoSection struct {
	title string
	rows  [][2]string
}

func (s *infoSection) add(label, value string) {
	s.rows = append(s.rows, [2]string{label, value})
}

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display build, runtime, configuration, guard and provider settings.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger

		sections := buildInfoSections()
		cfg, err := config.Load(cmd.Context())
		if err == nil {
			sections = append(sections, configSections(cfg)...)
		}

		log.Info("=== TickerLens Environment Information ===")
		for _, section := range sections {
			log.Info("")
			log.Info(section.title + ":")
			for _, row := range section.rows {
				log.Info(fmt.Sprintf("  %-16s %s", row[0]+":", row[1]))
			}
		}
		if err != nil {
			log.Warn("Config load failed: " + err.Error())
		}
		log.Info("")
		log.Info("=== End Environment Information ===")
	},
}

func buildInfoSections() []infoSection {
	app := infoSection{title: "Application"}
	if identity := GetAppIdentity(); identity != nil {
		app.add("Name", identity.BinaryName)
	}
	app.add("Version", versionInfo.Version)
	app.add("Commit", versionInfo.Commit)
	app.add("Built", versionInfo.BuildDate)

	version := crucible.GetVersion()
	ssot := infoSection{title: "SSOT"}
	ssot.add("Gofulmen", version.Gofulmen)
	ssot.add("Crucible", version.Crucible)

	rt := infoSection{title: "Runtime"}
	rt.add("Go Version", runtime.Version())
	rt.add("GOOS", runtime.GOOS)
	rt.add("GOARCH", runtime.GOARCH)
	rt.add("NumCPU", fmt.Sprint(runtime.NumCPU()))

	return []infoSection{app, ssot, rt}
}

func configSections(cfg *config.Config) []infoSection {
	conf := infoSection{title: "Configuration"}
	conf.add("Server", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	conf.add("Default Profile", cfg.Server.DefaultProfile)
	conf.add("Log Level", cfg.Logging.Level)
	conf.add("DB Driver", cfg.Store.Driver)
	if strings.TrimSpace(cfg.Store.URL) != "" {
		conf.add("DB URL", cfg.Store.URL)
	} else {
		conf.add("DB Path", cfg.Store.Path)
	}
	conf.add("Metrics Port", fmt.Sprint(cfg.Metrics.Port))
	conf.add("Config File", config.DefaultConfigPath())

	cache := infoSection{title: "Cache"}
	cache.add("Enabled", fmt.Sprint(cfg.Cache.Enabled))
	cache.add("OK TTL", cfg.Cache.OKTTL.String())
	cache.add("Error TTL", cfg.Cache.ErrorTTL.String())

	g := cfg.Guard
	guard := infoSection{title: "Guard"}
	guard.add("Max Calls", fmt.Sprintf("%d per %s", g.MaxCallsPerWindow, g.Window))
	guard.add("Safety Margin", fmt.Sprintf("%.2f", g.SafetyMargin))
	guard.add("Trip After", fmt.Sprintf("%d rate-limit signals", g.FailureThreshold))
	guard.add("Cooldown", fmt.Sprintf("%s x%.1f up to %s", g.BaseCooldown, g.BackoffFactor, g.MaxCooldown))

	providers := infoSection{title: "Providers"}
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := cfg.Providers[name]
		key := "(not set)"
		if strings.TrimSpace(p.APIKey) != "" {
			key = "(set)"
		}
		providers.add(name, fmt.Sprintf("enabled=%t kinds=%s base_url=%s api_key=%s",
			p.Enabled, strings.Join(p.Kinds, ","), p.BaseURL, key))
	}
	if len(names) == 0 {
		providers.add("(none)", "no providers configured")
	}

	return []infoSection{conf, cache, guard, providers}
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
