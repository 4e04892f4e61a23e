// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/afiliado-ai/agent-dashboard/internal/pause"
	"github.com/afiliado-ai/agent-dashboard/internal/store"
	"github.com/afiliado-ai/agent-dashboard/internal/tenant"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeDomainError maps the error taxonomy onto HTTP responses so every
// failure resolves to a specific, non-generic message.
func writeDomainError(w http.ResponseWriter, err error) {
	var validationErr *pause.ValidationError
	if errors.As(err, &validationErr) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": validationErr.Message,
			"field": validationErr.Field,
		})
		return
	}

	var persistErr *pause.PersistenceError
	if errors.As(err, &persistErr) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":     "could not save; please retry",
			"retryable": "true",
		})
		return
	}

	switch {
	case errors.Is(err, pause.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, store.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "tenant profile not found")
	case errors.Is(err, tenant.ErrConfigurationMissing):
		writeError(w, http.StatusConflict, "tenant resources not configured")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// isResolutionError reports whether a session could not be built because
// the tenant has no derivable resources. Read endpoints render an empty
// state for this instead of failing.
func isResolutionError(err error) bool {
	return errors.Is(err, tenant.ErrConfigurationMissing) || errors.Is(err, store.ErrProfileNotFound)
}
