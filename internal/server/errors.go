package server

import (
	"net/http"

	apperrors "github.com/tickerlens/tickerlens/internal/errors"
)

// HandleError writes err as a JSON error envelope. Handlers reach it through
// handlers.SetHTTPErrorResponder.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}
