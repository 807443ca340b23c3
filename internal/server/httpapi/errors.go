package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/imagehost/internal/common"
)

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps a service error onto its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrorGone):
		return http.StatusGone
	case errors.Is(err, common.ErrorBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrRefreshTokenExpired):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, ErrorResponse{Error: message}, statusCode)
}

func writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError replies with the status for err. Bad requests carry
// the error text; server-side failures are logged and reported generically.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusInternalServerError:
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusText(status), status)
	case http.StatusBadRequest:
		writeError(w, err.Error(), status)
	default:
		writeError(w, http.StatusText(status), status)
	}
}
