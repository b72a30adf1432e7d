package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-appointment-scheduling/internal/appointment"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// statusForKind maps a business error kind to its HTTP status.
func statusForKind(kind appointment.Kind) int {
	switch kind {
	case appointment.KindNotFound:
		return http.StatusNotFound
	case appointment.KindValidation:
		return http.StatusBadRequest
	case appointment.KindConflict:
		return http.StatusConflict
	case appointment.KindInactive:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeServiceError renders err from the scheduling core. Infrastructure
// failures are logged and hidden behind a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	kind := appointment.KindOf(err)
	if kind == "" {
		logger.Error().
			Err(err).
			Str("request_id", GetRequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeError(w, statusForKind(kind), string(kind), err.Error())
}
