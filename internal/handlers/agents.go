package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/wincvex/console/internal/agents"
)

// Agents is set from main.go during init.
var Agents *agents.Registry

type execRequest struct {
	Command string `json:"command"`
}

func ListAgents(w http.ResponseWriter, r *http.Request) {
	list, err := Agents.List()
	if err != nil {
		log.Error().Err(err).Str("module", "handlers").Msg("list agents")
		writeError(w, http.StatusInternalServerError, "Failed to list agents")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"agents": list})
}

func GetAgent(w http.ResponseWriter, r *http.Request) {
	status, err := Agents.Get(chi.URLParam(r, "agentId"))
	if err != nil {
		writeAgentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func ToggleVulnerability(w http.ResponseWriter, r *http.Request) {
	flags, err := Agents.Toggle(chi.URLParam(r, "agentId"), chi.URLParam(r, "vuln"), chi.URLParam(r, "action"))
	if err != nil {
		writeAgentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"vulnerabilities": flags})
}

func ExecCommand(w http.ResponseWriter, r *http.Request) {
	var req execRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	out, err := Agents.Exec(r.Context(), chi.URLParam(r, "agentId"), req.Command)
	if err != nil {
		writeAgentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"output": out})
}

func GetCommandHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}
	recs, err := Agents.History(chi.URLParam(r, "agentId"), limit)
	if err != nil {
		writeAgentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"commands": recs})
}
