package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"

	"github.com/tickerlens/tickerlens/internal/appid"
)

var (
	// CLILogger is used by one-shot commands (fetch, batch, snapshot, guard).
	CLILogger *logging.Logger

	// ServerLogger is used by serve and the HTTP middleware.
	ServerLogger *logging.Logger
)

// InitCLILogger installs CLILogger with the SIMPLE profile. verbose drops the
// level to DEBUG so guard waits and cache hits become visible.
func InitCLILogger(serviceName string, verbose bool) {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		fatal(os.Stderr, foundry.ExitConfigInvalid, "initialize CLI logger", err)
	}
	if verbose {
		logger.SetLevel(logging.DEBUG)
	}
	CLILogger = logger
}

// InitServerLogger installs ServerLogger with the STRUCTURED profile: JSON on
// stderr with correlation IDs. A non-empty namespace is added as a static field.
func InitServerLogger(serviceName, logLevel string, namespace ...string) {
	ns := ""
	if len(namespace) > 0 {
		ns = namespace[0]
	}

	logger, err := logging.New(serverLoggerConfig(serviceName, logLevel, ns))
	if err != nil {
		fatal(os.Stderr, foundry.ExitConfigInvalid, "initialize server logger", err)
	}
	ServerLogger = logger
}

func serverLoggerConfig(serviceName, logLevel, namespace string) *logging.LoggerConfig {
	static := map[string]any{}
	if namespace != "" {
		static["namespace"] = namespace
	}

	return &logging.LoggerConfig{
		Profile:      logging.ProfileStructured,
		DefaultLevel: parseLogLevel(logLevel),
		Service:      serviceName,
		Environment:  deploymentEnvironment(),
		StaticFields: static,
		Middleware: []logging.MiddlewareConfig{
			{Name: "correlation", Enabled: true, Order: 100, Config: map[string]any{}},
		},
		Sinks: []logging.SinkConfig{
			{
				Type:    "console",
				Format:  "json",
				Console: &logging.ConsoleSinkConfig{Stream: "stderr"},
			},
		},
		EnableCaller:     true,
		EnableStacktrace: true,
	}
}

// deploymentEnvironment reads <PREFIX>ENV, defaulting to production.
func deploymentEnvironment() string {
	if env := strings.TrimSpace(os.Getenv(appid.EnvName(context.Background(), "env"))); env != "" {
		return strings.ToLower(env)
	}
	return "production"
}

// parseLogLevel maps a config log level to a gofulmen severity name.
// Unknown values fall back to INFO.
func parseLogLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return "TRACE"
	case "debug":
		return "DEBUG"
	case "warn", "warning":
		return "WARN"
	case "error":
		return "ERROR"
	default:
		return "INFO"
	}
}

// fatal reports a logger bootstrap failure and exits. No logger exists yet,
// so it writes to w directly.
func fatal(w io.Writer, code foundry.ExitCode, what string, err error) {
	_, _ = fmt.Fprintf(w, "FATAL: %s: %v\n", what, err)
	if info, ok := foundry.GetExitCodeInfo(code); ok {
		_, _ = fmt.Fprintf(w, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
		os.Exit(info.Code)
	}
	os.Exit(int(code))
}
