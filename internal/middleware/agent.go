package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type contextKey string

const agentContextKey contextKey = "agent"

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// RequireAgent rejects requests whose {agentId} URL parameter is not a known
// agent and stores the ID in the request context otherwise.
func RequireAgent(known func(string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "agentId")
			if id == "" || !known(id) {
				writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Unknown agent"})
				return
			}
			ctx := context.WithValue(r.Context(), agentContextKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AgentID returns the agent stored by RequireAgent, or "".
func AgentID(r *http.Request) string {
	id, _ := r.Context().Value(agentContextKey).(string)
	return id
}
