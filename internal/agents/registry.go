package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wincvex/console/internal/database"
	"github.com/wincvex/console/internal/logutil"
)

var (
	ErrUnknownAgent      = database.ErrAgentNotFound
	ErrUnknownVuln       = database.ErrUnknownVulnerability
	ErrInvalidAction     = errors.New("action must be enable or disable")
	ErrCommandNotAllowed = errors.New("command not allowed")
	ErrEmptyCommand      = errors.New("empty command")
)

// Status is the public view of one agent.
type Status struct {
	ID              string          `json:"id"`
	DisplayName     string          `json:"display_name"`
	Vulnerabilities map[string]bool `json:"vulnerabilities"`
}

// Registry serves the simulated agents. Flag state lives in the database so
// toggles survive restarts.
type Registry struct {
	inv     *Inventory
	started time.Time
	now     func() time.Time
	logger  zerolog.Logger
}

// NewRegistry seeds the database from inv and returns a registry over it.
// database.DB must be initialized.
func NewRegistry(inv *Inventory) (*Registry, error) {
	for i, a := range inv.Agents {
		if err := database.EnsureAgent(a.ID, a.DisplayName, i, a.Vulnerabilities); err != nil {
			return nil, fmt.Errorf("seed agent %s: %w", a.ID, err)
		}
	}
	return &Registry{
		inv:     inv,
		started: time.Now(),
		now:     time.Now,
		logger:  log.With().Str("module", "agents").Logger(),
	}, nil
}

// Known reports whether id is part of the inventory.
func (r *Registry) Known(id string) bool {
	_, ok := r.inv.Lookup(id)
	return ok
}

// IDs returns the agent IDs in inventory order.
func (r *Registry) IDs() []string {
	return r.inv.IDs()
}

func (r *Registry) List() ([]Status, error) {
	rows, err := database.ListAgents()
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	out := make([]Status, 0, len(rows))
	for _, a := range rows {
		if !r.Known(a.AgentID) {
			continue
		}
		out = append(out, Status{ID: a.AgentID, DisplayName: a.DisplayName, Vulnerabilities: a.Vulnerabilities()})
	}
	return out, nil
}

func (r *Registry) Get(id string) (Status, error) {
	if !r.Known(id) {
		return Status{}, ErrUnknownAgent
	}
	a, err := database.GetAgent(id)
	if err != nil {
		return Status{}, err
	}
	return Status{ID: a.AgentID, DisplayName: a.DisplayName, Vulnerabilities: a.Vulnerabilities()}, nil
}

// Toggle enables or disables a vulnerability flag. action is "enable" or
// "disable". The agent's full flag map is returned.
func (r *Registry) Toggle(id, vuln, action string) (map[string]bool, error) {
	if !r.Known(id) {
		return nil, ErrUnknownAgent
	}
	var enabled bool
	switch action {
	case "enable":
		enabled = true
	case "disable":
	default:
		return nil, ErrInvalidAction
	}
	flags, err := database.SetVulnerability(id, vuln, enabled)
	if err != nil {
		return nil, err
	}
	r.logger.Info().
		Str("agent", id).
		Str("vuln", logutil.SanitizeForLog(vuln)).
		Bool("enabled", enabled).
		Msg("vulnerability toggled")
	return flags, nil
}

// Exec runs an allow-listed command on behalf of the REST API.
func (r *Registry) Exec(ctx context.Context, id, command string) (string, error) {
	if !r.Known(id) {
		return "", ErrUnknownAgent
	}
	cmd := strings.TrimSpace(command)
	if !isAllowed(cmd) {
		r.record(id, cmd, "rest", false)
		return "", ErrCommandNotAllowed
	}
	out, err := r.run(ctx, id, cmd)
	if err != nil {
		return "", err
	}
	r.record(id, cmd, "rest", true)
	return out, nil
}

// Terminal runs a command typed into the interactive terminal. Aliases are
// resolved, and commands outside the allow-list are acknowledged rather than
// rejected.
func (r *Registry) Terminal(ctx context.Context, id, command string) (string, error) {
	cmd := strings.TrimSpace(command)
	if cmd == "" {
		return "", ErrEmptyCommand
	}
	if !r.Known(id) {
		return "", ErrUnknownAgent
	}
	key := cmd
	if alias, ok := commandAliases[key]; ok {
		key = alias
	}
	if !isAllowed(key) {
		r.record(id, cmd, "terminal", false)
		return fmt.Sprintf("Executed: %s", cmd), nil
	}
	out, err := r.run(ctx, id, key)
	if err != nil {
		return "", err
	}
	r.record(id, cmd, "terminal", true)
	return out, nil
}

func (r *Registry) run(ctx context.Context, id, cmd string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	a, err := database.GetAgent(id)
	if err != nil {
		return "", err
	}
	return simulate(id, cmd, a.Vulnerabilities(), r.started, r.now()), nil
}

// History returns recent commands executed on the agent.
func (r *Registry) History(id string, limit int) ([]database.CommandRecord, error) {
	if !r.Known(id) {
		return nil, ErrUnknownAgent
	}
	return database.RecentCommands(id, limit)
}

func (r *Registry) record(id, cmd, source string, allowed bool) {
	rec := &database.CommandRecord{AgentID: id, Command: cmd, Source: source, Allowed: allowed}
	if err := database.RecordCommand(rec); err != nil {
		r.logger.Warn().Err(err).Str("agent", id).Msg("failed to record command")
	}
	r.logger.Debug().
		Str("agent", id).
		Str("command", logutil.Command(cmd)).
		Str("source", source).
		Bool("allowed", allowed).
		Msg("command executed")
}
