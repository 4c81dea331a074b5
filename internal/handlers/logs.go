package handlers

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/wincvex/console/internal/agents"
	"github.com/wincvex/console/internal/logutil"
)

// LogFeed is set from main.go during init.
var LogFeed *agents.LogFeed

// AgentLogsWS streams simulated log lines for an agent as plain text frames.
func AgentLogsWS(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "logs-ws").Msg("failed to accept log websocket")
		return
	}
	defer conn.CloseNow()

	if Agents == nil || LogFeed == nil || !Agents.Known(agentID) {
		conn.Close(closeUnknownAgent, "Unknown agent")
		return
	}

	logger := log.With().Str("module", "logs-ws").Str("agent", logutil.SanitizeForLog(agentID)).Logger()
	lines, cancel := LogFeed.Subscribe(agentID)
	defer cancel()

	// Clients never send on this stream; CloseRead handles their close frame.
	ctx := conn.CloseRead(r.Context())
	logger.Debug().Msg("log stream opened")

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("log stream closed")
			return
		case line, ok := <-lines:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "Log feed stopped")
				return
			}
			if err := conn.Write(ctx, websocket.MessageText, []byte(line)); err != nil {
				return
			}
		}
	}
}
