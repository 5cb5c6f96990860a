package metrics

import (
	"strconv"

	"github.com/tickerlens/tickerlens/internal/observability"
)

// Error metrics
const (
	ErrorsTotal      = "errors_total"
	PanicsTotal      = "panics_total"
	ErrorsByEndpoint = "errors_by_endpoint"
)

// RecordError counts an error envelope written to a client. Guard refusals
// arrive here as CIRCUIT_OPEN/503 and TIMEOUT/504.
func RecordError(errorCode string, httpStatus int) {
	counter(ErrorsTotal, map[string]string{
		"error_code":  errorCode,
		"http_status": strconv.Itoa(httpStatus),
	})
}

// RecordPanic counts a recovered handler panic.
func RecordPanic() {
	counter(PanicsTotal, nil)
}

// RecordErrorByEndpoint counts an error against the request path that
// produced it.
func RecordErrorByEndpoint(endpoint, errorCode string) {
	if endpoint == "" {
		endpoint = "unknown"
	}
	counter(ErrorsByEndpoint, map[string]string{
		"endpoint":   endpoint,
		"error_code": errorCode,
	})
}

func counter(name string, labels map[string]string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(name, 1, labels)
}
