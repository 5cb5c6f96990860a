package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tickerlens/tickerlens/internal/observability"
)

// HTTP metrics
const (
	HTTPRequestsTotal     = "http_requests_total"
	HTTPRequestDuration   = "http_request_duration_ms"
	HTTPRequestSize       = "http_request_size_bytes"
	HTTPResponseSize      = "http_response_size_bytes"
	HTTPErrorsTotal       = "http_errors_total"
	HTTPRetryAfterSeconds = "http_retry_after_seconds"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// getEndpointPattern returns the chi route pattern, or a coarse bucket for
// unmatched paths so symbols never become label values.
func getEndpointPattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	path := r.URL.Path
	switch {
	case path == "/health" || strings.HasPrefix(path, "/health/"):
		return "/health/*"
	case path == "/version", path == "/metrics", path == "/":
		return path
	case strings.HasPrefix(path, "/v1/tickers/"):
		return "/v1/tickers/{symbol}"
	case strings.HasPrefix(path, "/v1/guards"):
		return "/v1/guards/*"
	default:
		return "/unknown"
	}
}

// quietEndpoint reports probe and scrape traffic, which is logged at debug.
func quietEndpoint(endpoint string) bool {
	return endpoint == "/metrics" || strings.HasPrefix(endpoint, "/health")
}

// RequestMetrics records request counters, latency and sizes, and logs each
// request. 503 responses that carry Retry-After also record the advertised
// wait so open provider circuits show up on the HTTP side.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if observability.TelemetrySystem == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		requestSize := r.ContentLength
		if requestSize < 0 {
			requestSize = 0
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		endpoint := getEndpointPattern(r)
		status := strconv.Itoa(wrapped.statusCode)
		routeLabels := map[string]string{"method": r.Method, "endpoint": endpoint}
		labels := map[string]string{"method": r.Method, "endpoint": endpoint, "status": status}

		telemetry := observability.TelemetrySystem
		_ = telemetry.Counter(HTTPRequestsTotal, 1, labels)
		_ = telemetry.Histogram(HTTPRequestDuration, duration, labels)
		_ = telemetry.Gauge(HTTPRequestSize, float64(requestSize), routeLabels)
		_ = telemetry.Gauge(HTTPResponseSize, float64(wrapped.bytesWritten), routeLabels)

		if wrapped.statusCode >= http.StatusBadRequest {
			errorType := "client_error"
			if wrapped.statusCode >= http.StatusInternalServerError {
				errorType = "server_error"
			}
			_ = telemetry.Counter(HTTPErrorsTotal, 1, map[string]string{
				"method":     r.Method,
				"endpoint":   endpoint,
				"status":     status,
				"error_type": errorType,
			})
		}

		if wrapped.statusCode == http.StatusServiceUnavailable {
			if seconds, err := strconv.Atoi(wrapped.Header().Get("Retry-After")); err == nil {
				_ = telemetry.Gauge(HTTPRetryAfterSeconds, float64(seconds), routeLabels)
			}
		}

		logger := observability.ServerLogger
		if logger == nil {
			return
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("endpoint", endpoint),
			zap.Int("status", wrapped.statusCode),
			zap.Duration("duration", duration),
			zap.Int64("request_size", requestSize),
			zap.Int64("response_size", wrapped.bytesWritten),
			zap.String("request_id", GetRequestID(r.Context())),
		}
		if quietEndpoint(endpoint) {
			logger.Debug("HTTP request completed", fields...)
			return
		}
		logger.Info("HTTP request completed", fields...)
	})
}
