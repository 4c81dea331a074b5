package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wincvex/console/internal/agents"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeAgentError maps registry errors to HTTP responses.
func writeAgentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, agents.ErrUnknownAgent):
		writeError(w, http.StatusNotFound, "Unknown agent")
	case errors.Is(err, agents.ErrUnknownVuln):
		writeError(w, http.StatusNotFound, "Unknown vulnerability")
	case errors.Is(err, agents.ErrInvalidAction):
		writeError(w, http.StatusBadRequest, "Action must be enable or disable")
	case errors.Is(err, agents.ErrCommandNotAllowed):
		writeError(w, http.StatusBadRequest, "Command not allowed")
	case errors.Is(err, agents.ErrEmptyCommand):
		writeError(w, http.StatusBadRequest, "Empty command")
	default:
		writeError(w, http.StatusInternalServerError, "Internal error")
	}
}
