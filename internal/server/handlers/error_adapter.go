package handlers

import (
	"net/http"

	apperrors "github.com/tickerlens/tickerlens/internal/errors"
)

type errorResponder func(http.ResponseWriter, *http.Request, error)

var httpErrorResponder errorResponder = apperrors.RespondWithError

// SetHTTPErrorResponder replaces the function handlers use to write errors.
// nil restores the default envelope writer.
func SetHTTPErrorResponder(responder func(http.ResponseWriter, *http.Request, error)) {
	if responder == nil {
		httpErrorResponder = apperrors.RespondWithError
		return
	}
	httpErrorResponder = responder
}

// ResetHTTPErrorResponder restores the default envelope writer.
func ResetHTTPErrorResponder() {
	SetHTTPErrorResponder(nil)
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	httpErrorResponder(w, r, err)
}
