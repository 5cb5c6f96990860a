package handlers

import (
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tickerlens/tickerlens/internal/core"
	"github.com/tickerlens/tickerlens/internal/core/engine"
	"github.com/tickerlens/tickerlens/internal/core/provider"
	apperrors "github.com/tickerlens/tickerlens/internal/errors"
)

// TickersHandler serves single-ticker lookups through the guarded fetchers.
type TickersHandler struct {
	Orchestrator   *engine.Orchestrator
	DefaultProfile string
}

// Get handles GET /v1/tickers/{symbol}?profile=full&kinds=quote,earnings.
func (h *TickersHandler) Get(w http.ResponseWriter, r *http.Request) {
	symbol := provider.NormalizeSymbol(chi.URLParam(r, "symbol"))
	if !provider.ValidSymbol(symbol) {
		respondWithError(w, r, apperrors.NewInvalidInputError("invalid ticker symbol"))
		return
	}

	profile, err := h.profile(r)
	if err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, err.Error()))
		return
	}

	results, err := h.Orchestrator.Fetch(r.Context(), symbol, profile)
	if err != nil {
		if envelope := apperrors.FromGuardError(r.Context(), err); envelope != nil {
			respondWithError(w, r, envelope)
			return
		}
		respondWithError(w, r, apperrors.WrapInternal(r.Context(), err, "ticker fetch failed"))
		return
	}

	if wait, ok := allSkipped(results); ok {
		envelope := apperrors.WrapCircuitOpen(r.Context(), nil, "all providers for this request are suspended")
		if updated, updateErr := envelope.WithContext(map[string]interface{}{
			"retry_after_seconds": wait,
		}); updateErr == nil {
			envelope = updated
		}
		respondWithError(w, r, envelope)
		return
	}

	writeJSON(w, http.StatusOK, core.Summarize(symbol, results, time.Now().UTC()))
}

func (h *TickersHandler) profile(r *http.Request) (core.Profile, error) {
	query := r.URL.Query()
	if raw := strings.TrimSpace(query.Get("kinds")); raw != "" {
		kinds, err := core.ParseKinds(strings.Split(raw, ","))
		if err != nil {
			return core.Profile{}, err
		}
		return core.Profile{Name: "custom", Kinds: kinds}, nil
	}

	name := strings.TrimSpace(query.Get("profile"))
	if name == "" {
		name = h.DefaultProfile
	}
	if name == "" {
		name = "full"
	}
	return core.LookupProfile(name)
}

// allSkipped reports whether every result was refused by an open circuit, and
// the shortest retry hint among them in whole seconds.
func allSkipped(results []*core.FetchResult) (int, bool) {
	if len(results) == 0 {
		return 0, false
	}

	shortest := math.MaxFloat64
	for _, result := range results {
		if result == nil || result.Status != core.StatusSkipped {
			return 0, false
		}
		if value, ok := result.ExtraData["retry_after_seconds"].(float64); ok && value < shortest {
			shortest = value
		}
	}
	if shortest == math.MaxFloat64 {
		return 0, true
	}
	return int(math.Ceil(shortest)), true
}
