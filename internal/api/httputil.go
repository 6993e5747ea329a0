package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/movaia/movaia/internal/apperr"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func httpError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondCoreError maps the core's error taxonomy to HTTP status codes.
// Structural errors carry their message; anything unrecognized is a 500
// with the detail kept server-side.
func respondCoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		httpError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		httpError(w, http.StatusNotFound, "not found")
	case errors.Is(err, apperr.ErrMissingRequiredSegment):
		httpError(w, http.StatusConflict, "the normal angle video must be uploaded before analysis can start")
	case errors.Is(err, apperr.ErrExternalSubmission):
		httpError(w, http.StatusBadGateway, "analysis failed to start")
	default:
		log.Error().Err(err).Msg("Unhandled error")
		httpError(w, http.StatusInternalServerError, "internal error")
	}
}
