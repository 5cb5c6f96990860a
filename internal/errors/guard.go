package errors

import (
	"context"
	stderrors "errors"
	"math"
	"net/http"
	"strconv"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/tickerlens/tickerlens/internal/core/engine"
)

const retryAfterKey = "retry_after_seconds"

func NewCircuitOpenError(message string) *errors.ErrorEnvelope {
	return newEnvelope(CodeCircuitOpen, message)
}

func WrapCircuitOpen(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeCircuitOpen, err, message)
}

// FromGuardError maps guard admission errors onto envelopes. It returns nil
// for errors that did not come from a guard.
func FromGuardError(ctx context.Context, err error) *errors.ErrorEnvelope {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, engine.ErrCircuitOpen):
		envelope := WrapCircuitOpen(ctx, err, "provider temporarily unavailable")
		if wait, ok := engine.RetryAfter(err); ok {
			if updated, updateErr := envelope.WithContext(map[string]interface{}{
				retryAfterKey: int(math.Ceil(wait.Seconds())),
			}); updateErr == nil {
				envelope = updated
			}
		}
		return envelope
	case stderrors.Is(err, engine.ErrDeadlineExceeded):
		return WrapTimeout(ctx, err, "timed out waiting for provider capacity")
	default:
		return nil
	}
}

// setRetryAfter copies a retry hint from the envelope onto the response.
func setRetryAfter(w http.ResponseWriter, envelope *errors.ErrorEnvelope) {
	if w == nil || envelope == nil || envelope.Context == nil {
		return
	}

	var seconds int
	switch value := envelope.Context[retryAfterKey].(type) {
	case int:
		seconds = value
	case float64:
		seconds = int(math.Ceil(value))
	default:
		return
	}
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
}
