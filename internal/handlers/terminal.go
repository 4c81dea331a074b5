package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wincvex/console/internal/agents"
	"github.com/wincvex/console/internal/logutil"
	"github.com/wincvex/console/internal/protocol"
)

// terminalRateLimit defines the maximum number of command messages allowed
// per second per WebSocket connection.
const terminalRateLimit = 20

// terminalRateBurst lets a client fire a short burst of commands before
// rate limiting kicks in.
const terminalRateBurst = 40

// maxCommandMessageSize caps an inbound command frame.
const maxCommandMessageSize = 64 * 1024

// Close codes sent to terminal clients.
const (
	closeUnknownAgent = 4004
	closeRateLimited  = 4429
)

// CommandDelay simulates agent latency before each command's output is sent.
// Set from main.go.
var CommandDelay = 200 * time.Millisecond

// tokenBucket implements a simple token bucket rate limiter for terminal messages.
type tokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens added per second
	lastRefill time.Time
}

func newTokenBucket(maxTokens, refillRate int) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(maxTokens),
		maxTokens:  float64(maxTokens),
		refillRate: float64(refillRate),
		lastRefill: time.Now(),
	}
}

// allow checks if a message is allowed and consumes a token.
func (tb *tokenBucket) allow() bool {
	now := time.Now()
	tb.tokens += now.Sub(tb.lastRefill).Seconds() * tb.refillRate
	tb.lastRefill = now
	if tb.tokens > tb.maxTokens {
		tb.tokens = tb.maxTokens
	}
	if tb.tokens < 1 {
		return false
	}
	tb.tokens--
	return true
}

// TerminalWS serves the interactive terminal for one agent.
//
// Query parameters:
//   - host: the agent to run commands on. Unknown agents are closed with 4004.
//
// Each inbound command frame produces its output as line frames after
// CommandDelay. The command itself is not echoed back; clients echo locally.
func TerminalWS(w http.ResponseWriter, r *http.Request) {
	host := r.URL.Query().Get("host")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "terminal-ws").Msg("failed to accept terminal websocket")
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxCommandMessageSize)

	if Agents == nil || !Agents.Known(host) {
		conn.Close(closeUnknownAgent, "Unknown agent")
		return
	}

	ctx := r.Context()
	logger := log.With().
		Str("module", "terminal-ws").
		Str("conn", uuid.NewString()).
		Str("host", logutil.SanitizeForLog(host)).
		Logger()
	logger.Info().Msg("terminal session opened")

	if err := sendEnvelope(ctx, conn, protocol.Status("Session ready on "+host)); err != nil {
		return
	}

	bucket := newTokenBucket(terminalRateBurst, terminalRateLimit)
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			logger.Info().Int("status", int(websocket.CloseStatus(err))).Msg("terminal session closed")
			return
		}
		if !bucket.allow() {
			logger.Warn().Msg("terminal rate limit exceeded")
			conn.Close(closeRateLimited, "Rate limit exceeded")
			return
		}
		if msgType != websocket.MessageText {
			sendEnvelope(ctx, conn, protocol.Error("Unknown message"))
			continue
		}
		if err := handleCommand(ctx, conn, logger, host, data); err != nil {
			return
		}
	}
}

// handleCommand runs one command frame. A returned error means the
// connection is unusable.
func handleCommand(ctx context.Context, conn *websocket.Conn, logger zerolog.Logger, host string, data []byte) error {
	env, err := protocol.DecodeCommand(data)
	if err != nil {
		return sendEnvelope(ctx, conn, protocol.Error("Unknown message"))
	}
	if env.Command == "" {
		return sendEnvelope(ctx, conn, protocol.Error("Empty command"))
	}
	if env.Host != "" && env.Host != host {
		return sendEnvelope(ctx, conn, protocol.Error("Command addressed to "+env.Host+" but session is on "+host))
	}

	if CommandDelay > 0 {
		t := time.NewTimer(CommandDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}

	out, err := Agents.Terminal(ctx, host, env.Command)
	if err != nil {
		logger.Warn().Err(err).Str("command", logutil.Command(env.Command)).Msg("terminal command failed")
		if errors.Is(err, agents.ErrEmptyCommand) {
			return sendEnvelope(ctx, conn, protocol.Error("Empty command"))
		}
		return sendEnvelope(ctx, conn, protocol.Error("Command failed: "+err.Error()))
	}
	for _, line := range strings.Split(out, "\n") {
		if err := sendEnvelope(ctx, conn, protocol.Line(line)); err != nil {
			return err
		}
	}
	return nil
}

func sendEnvelope(ctx context.Context, conn *websocket.Conn, env protocol.Envelope) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
