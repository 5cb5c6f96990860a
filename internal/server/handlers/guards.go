package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tickerlens/tickerlens/internal/core"
	"github.com/tickerlens/tickerlens/internal/core/engine"
	apperrors "github.com/tickerlens/tickerlens/internal/errors"
)

// GuardsResponse lists every provider guard.
type GuardsResponse struct {
	Guards    []core.GuardStatus `json:"guards"`
	Timestamp time.Time          `json:"timestamp"`
}

// GuardsHandler serves read-only guard diagnostics.
type GuardsHandler struct {
	Registry *engine.Registry
}

// List handles GET /v1/guards.
func (h *GuardsHandler) List(w http.ResponseWriter, r *http.Request) {
	statuses := h.Registry.Statuses()
	if statuses == nil {
		statuses = []core.GuardStatus{}
	}

	writeJSON(w, http.StatusOK, GuardsResponse{
		Guards:    statuses,
		Timestamp: time.Now().UTC(),
	})
}

// Get handles GET /v1/guards/{provider}.
func (h *GuardsHandler) Get(w http.ResponseWriter, r *http.Request) {
	provider := strings.TrimSpace(chi.URLParam(r, "provider"))
	if provider == "" {
		respondWithError(w, r, apperrors.NewInvalidInputError("provider is required"))
		return
	}

	guard, ok := h.Registry.Lookup(provider)
	if !ok {
		respondWithError(w, r, apperrors.NewNotFoundError(fmt.Sprintf("no guard for provider %q", provider)))
		return
	}

	writeJSON(w, http.StatusOK, guard.Status())
}

// GuardHealthChecker reports degraded while any provider circuit is not closed.
type GuardHealthChecker struct {
	Registry *engine.Registry
}

// CheckHealth implements HealthChecker.
func (c GuardHealthChecker) CheckHealth(ctx context.Context) error {
	var tripped []string
	for _, status := range c.Registry.Statuses() {
		if status.State != core.CircuitClosed {
			tripped = append(tripped, status.Provider)
		}
	}
	if len(tripped) > 0 {
		return fmt.Errorf("%w: circuit not closed for %s", ErrDegraded, strings.Join(tripped, ", "))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
