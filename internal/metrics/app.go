package metrics

import (
	"time"

	"github.com/tickerlens/tickerlens/internal/observability"
)

// Application-level metrics following Prometheus conventions
var (
	// Fetch metrics
	FetchesTotal  = "app_fetches_total"
	FetchDuration = "app_fetch_duration_ms"

	// Health check metrics
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"

	// Server lifecycle metrics
	ServerStartTime = "app_server_start_time_seconds"
)

// RecordFetch counts one fetch result by provider, kind and status.
func RecordFetch(provider, kind, status string, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	_ = observability.TelemetrySystem.Counter(
		FetchesTotal,
		1,
		map[string]string{
			"provider": provider,
			"kind":     kind,
			"status":   status,
		},
	)

	_ = observability.TelemetrySystem.Histogram(
		FetchDuration,
		duration,
		map[string]string{
			"provider": provider,
			"kind":     kind,
		},
	)
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, status string, duration time.Duration) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}
