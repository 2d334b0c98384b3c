package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"careslot/appointment"
	"careslot/auth"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Message string `json:"message"`
}

// writeError maps the domain error taxonomy onto HTTP status codes. Unknown
// errors are reported as opaque 500s so storage failures never masquerade as
// business outcomes.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput), errors.Is(err, appointment.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody{Message: err.Error()})
	case errors.Is(err, auth.ErrDuplicateIdentity):
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "already registered"})
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorBody{Message: "invalid credentials"})
	case errors.Is(err, auth.ErrAccountDisabled):
		writeJSON(w, http.StatusUnauthorized, errorBody{Message: "account is deactivated"})
	case errors.Is(err, auth.ErrTokenExpired), errors.Is(err, auth.ErrTokenInvalid),
		errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrPrincipalNotFound):
		writeJSON(w, http.StatusUnauthorized, errorBody{Message: "not authenticated"})
	case errors.Is(err, auth.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Message: "access denied"})
	case errors.Is(err, appointment.ErrNotFound), errors.Is(err, appointment.ErrProviderUnavailable),
		errors.Is(err, appointment.ErrNotReviewable):
		writeJSON(w, http.StatusNotFound, errorBody{Message: err.Error()})
	case errors.Is(err, appointment.ErrSlotUnavailable), errors.Is(err, appointment.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorBody{Message: err.Error()})
	default:
		logger.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: "internal error"})
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return auth.ErrInvalidInput
	}
	return nil
}
