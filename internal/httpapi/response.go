package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/creatorpulse/creatorpulse/internal/cperrors"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// statusFromError maps a store or domain error to an HTTP status code.
// Every handler routes its errors through this instead of hand-rolling the
// mapping per call site.
func statusFromError(err error) int {
	var cpErr *cperrors.Error
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, persistence.ErrAlreadyExists), errors.Is(err, persistence.ErrAlreadyCrawling), errors.Is(err, persistence.ErrRevisionConflict):
		return http.StatusConflict
	case errors.Is(err, persistence.ErrForbidden):
		return http.StatusForbidden
	case errors.As(err, &cpErr):
		switch cpErr.Kind() {
		case cperrors.KindValidation:
			return http.StatusBadRequest
		case cperrors.KindRateLimit:
			return http.StatusTooManyRequests
		case cperrors.KindNoContent, cperrors.KindNoTrends:
			return http.StatusUnprocessableEntity
		default:
			return http.StatusInternalServerError
		}
	default:
		return http.StatusInternalServerError
	}
}
