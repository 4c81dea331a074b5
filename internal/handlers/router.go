package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/wincvex/console/internal/middleware"
)

// NewRouter wires every endpoint of the agent service.
func NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)

	r.Get("/health", HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/agents", ListAgents)
		r.Route("/agents/{agentId}", func(r chi.Router) {
			r.Use(middleware.RequireAgent(knownAgent))
			r.Get("/", GetAgent)
			r.Post("/vulnerabilities/{vuln}/{action}", ToggleVulnerability)
			r.Post("/exec", ExecCommand)
			r.Get("/commands", GetCommandHistory)
		})

		r.Get("/ws", TerminalWS)
		r.Get("/ws/logs/{agentId}", AgentLogsWS)

		r.Get("/v1/server-logs", GetServerLogs)
		r.Delete("/v1/server-logs", ClearServerLogs)
	})
	return r
}

func knownAgent(id string) bool {
	return Agents != nil && Agents.Known(id)
}
