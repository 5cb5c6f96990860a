package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tickerlens/tickerlens/internal/core"
	"github.com/tickerlens/tickerlens/internal/output"
	"github.com/tickerlens/tickerlens/internal/server/handlers"
)

var (
	guardServerURL string
	guardOutput    string
	guardTimeout   time.Duration
)

var guardCmd = &cobra.Command{
	Use:   "guard",
	Short: "Inspect provider guards on a running server",
}

var guardStatusCmd = &cobra.Command{
	Use:   "status [provider]",
	Short: "Show circuit state and window usage per provider",
	Long: `Query a running server for its provider guards.

Guards live in the serving process, so this command reads them over HTTP
from /v1/guards rather than from local state.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(guardOutput)
		if err != nil {
			return err
		}

		base := strings.TrimSpace(guardServerURL)
		if base == "" {
			base = defaultServerURL()
		}

		provider := ""
		if len(args) == 1 {
			provider = args[0]
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), guardTimeout)
		defer cancel()

		statuses, err := fetchGuardStatuses(ctx, http.DefaultClient, base, provider)
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(format).FormatGuards(statuses)
		if err != nil {
			return err
		}
		fmt.Println(rendered)
		return nil
	},
}

func init() {
	guardStatusCmd.Flags().StringVar(&guardServerURL, "server", "", "Server base URL (default: http://<server.host>:<server.port>)")
	guardStatusCmd.Flags().StringVar(&guardOutput, "output", "table", "Output format: table, json, markdown")
	guardStatusCmd.Flags().DurationVar(&guardTimeout, "timeout", 5*time.Second, "Request timeout")

	guardCmd.AddCommand(guardStatusCmd)
	rootCmd.AddCommand(guardCmd)
}

func defaultServerURL() string {
	host := viper.GetString("server.host")
	if host == "" {
		host = "localhost"
	}
	port := viper.GetInt("server.port")
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("http://%s:%d", host, port)
}

func fetchGuardStatuses(ctx context.Context, client *http.Client, base, provider string) ([]core.GuardStatus, error) {
	endpoint, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil || endpoint.Host == "" {
		return nil, fmt.Errorf("invalid server url: %q", base)
	}
	endpoint.Path += "/v1/guards"
	if provider = strings.TrimSpace(provider); provider != "" {
		endpoint.Path += "/" + url.PathEscape(provider)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query guards: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("query guards: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	if provider != "" {
		var status core.GuardStatus
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return nil, fmt.Errorf("decode guard status: %w", err)
		}
		return []core.GuardStatus{status}, nil
	}

	var payload handlers.GuardsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode guard list: %w", err)
	}
	return payload.Guards, nil
}
