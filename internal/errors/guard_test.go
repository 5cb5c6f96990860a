package errors

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickerlens/tickerlens/internal/core/engine"
)

func TestFromGuardErrorCircuitOpen(t *testing.T) {
	err := fmt.Errorf("fetch quote: %w", &engine.CircuitOpenError{Provider: "quotes", Remaining: 1500 * time.Millisecond})

	envelope := FromGuardError(context.Background(), err)
	require.NotNil(t, envelope)
	assert.Equal(t, "CIRCUIT_OPEN", envelope.Code)
	assert.EqualValues(t, 2, envelope.Context[retryAfterKey])
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatusFromEnvelope(envelope))
}

func TestFromGuardErrorDeadline(t *testing.T) {
	err := fmt.Errorf("%w: %w", engine.ErrDeadlineExceeded, context.DeadlineExceeded)

	envelope := FromGuardError(context.Background(), err)
	require.NotNil(t, envelope)
	assert.Equal(t, "TIMEOUT", envelope.Code)
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatusFromEnvelope(envelope))

	assert.Nil(t, FromGuardError(context.Background(), fmt.Errorf("other")))
	assert.Nil(t, FromGuardError(context.Background(), nil))
}

func TestRespondWithErrorSetsRetryAfter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/tickers/AAPL", nil)
	rec := httptest.NewRecorder()

	RespondWithError(rec, req, &engine.CircuitOpenError{Provider: "quotes", Remaining: 42 * time.Second})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"code":"CIRCUIT_OPEN"`)
}

func TestEnvelopeSeverityByCode(t *testing.T) {
	assert.NotEmpty(t, string(NewInternalError("boom").Severity))
	assert.NotEmpty(t, string(NewCircuitOpenError("suspended").Severity))
	assert.NotEqual(t, NewInternalError("boom").Severity, NewCircuitOpenError("suspended").Severity)
	assert.Empty(t, string(NewNotFoundError("missing").Severity))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatusFromCode(CodeRateLimited))
}
