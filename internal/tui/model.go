// Package tui is the interactive console: a host list with vulnerability
// flags, the command transcript of the selected host and its log stream.
package tui

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/wincvex/console/internal/apiclient"
	"github.com/wincvex/console/internal/terminal"
)

const apiTimeout = 10 * time.Second

// Session is the part of terminal.SessionManager the console drives.
type Session interface {
	SelectHost(ctx context.Context, host string)
	Reconnect(ctx context.Context) bool
	Submit(ctx context.Context, text string)
	RecallOlder(current string) string
	RecallNewer() string
	Clear()
	Host() string
	State() terminal.ConnState
	Entries() []terminal.Entry
}

// LogStream is the part of terminal.LogTail the console drives.
type LogStream interface {
	Follow(ctx context.Context, host string)
	Entries() []terminal.Entry
}

// AgentAPI is the part of apiclient.Client the console drives.
type AgentAPI interface {
	ListAgents(ctx context.Context) ([]apiclient.Agent, error)
	ToggleVulnerability(ctx context.Context, id, vuln string, enable bool) (map[string]bool, error)
}

type paneFocus int

const (
	focusHosts paneFocus = iota
	focusInput
)

type refreshMsg struct{}

type agentsLoadedMsg struct {
	agents []apiclient.Agent
}

type toggledMsg struct {
	agent string
	vulns map[string]bool
}

type errMsg struct {
	err error
}

// Options configures a Model.
type Options struct {
	Session Session
	Logs    LogStream
	API     AgentAPI
	Changes *Notifier
	// InitialHost is selected once the agent list has loaded.
	InitialHost string
}

// Model is the Bubble Tea model of the console.
type Model struct {
	ctx     context.Context
	session Session
	logs    LogStream
	api     AgentAPI
	changes *Notifier

	initialHost string

	agents     []apiclient.Agent
	cursor     int
	vulnCursor int
	focus      paneFocus

	input      textinput.Model
	transcript viewport.Model
	logView    viewport.Model

	status string
	err    error
	width  int
	height int
}

// New builds the console model. ctx bounds every connection and API call the
// model starts.
func New(ctx context.Context, opts Options) Model {
	in := textinput.New()
	in.Placeholder = "Select a host, then type a command..."
	in.Prompt = "$ "
	in.CharLimit = 512
	in.Width = 60

	m := Model{
		ctx:         ctx,
		session:     opts.Session,
		logs:        opts.Logs,
		api:         opts.API,
		changes:     opts.Changes,
		initialHost: opts.InitialHost,
		focus:       focusHosts,
		input:       in,
		transcript:  viewport.New(60, 10),
		logView:     viewport.New(60, 6),
		status:      "Loading agents...",
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadAgents(), m.changes.Wait())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case refreshMsg:
		m.refresh()
		return m, m.changes.Wait()

	case agentsLoadedMsg:
		m.agents = msg.agents
		m.err = nil
		m.status = fmt.Sprintf("%d agents", len(m.agents))
		if m.cursor >= len(m.agents) {
			m.cursor = 0
		}
		if m.initialHost != "" {
			host := m.initialHost
			m.initialHost = ""
			if i := m.indexOf(host); i >= 0 {
				m.cursor = i
				m.selectHost(host)
			} else {
				m.err = fmt.Errorf("unknown host %q", host)
			}
		}
		return m, nil

	case toggledMsg:
		for i := range m.agents {
			if m.agents[i].ID == msg.agent {
				m.agents[i].Vulnerabilities = msg.vulns
			}
		}
		m.err = nil
		m.status = "Updated " + msg.agent
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.ForceQuit) {
		return m, tea.Quit
	}
	if key.Matches(msg, keys.Focus) {
		m.toggleFocus()
		return m, nil
	}
	switch m.focus {
	case focusHosts:
		return m.handleHostKey(msg)
	default:
		return m.handleInputKey(msg)
	}
}

func (m Model) handleHostKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Up):
		if n := len(m.agents); n > 0 {
			m.cursor = (m.cursor - 1 + n) % n
			m.vulnCursor = 0
		}
	case key.Matches(msg, keys.Down):
		if n := len(m.agents); n > 0 {
			m.cursor = (m.cursor + 1) % n
			m.vulnCursor = 0
		}
	case key.Matches(msg, keys.Left):
		if n := len(m.vulnNames()); n > 0 {
			m.vulnCursor = (m.vulnCursor - 1 + n) % n
		}
	case key.Matches(msg, keys.Right):
		if n := len(m.vulnNames()); n > 0 {
			m.vulnCursor = (m.vulnCursor + 1) % n
		}
	case key.Matches(msg, keys.Select):
		if a, ok := m.highlighted(); ok {
			m.selectHost(a.ID)
			m.toggleFocus()
		}
	case key.Matches(msg, keys.Toggle):
		return m, m.toggleVulnerability()
	case key.Matches(msg, keys.Clear):
		m.session.Clear()
	case key.Matches(msg, keys.Reconnect):
		m.reconnect()
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Submit):
		text := m.input.Value()
		m.input.Reset()
		m.session.Submit(m.ctx, text)
		return m, nil
	case key.Matches(msg, historyOlder):
		m.input.SetValue(m.session.RecallOlder(m.input.Value()))
		m.input.CursorEnd()
		return m, nil
	case key.Matches(msg, historyNewer):
		m.input.SetValue(m.session.RecallNewer())
		m.input.CursorEnd()
		return m, nil
	case key.Matches(msg, keys.Clear):
		m.session.Clear()
		return m, nil
	case key.Matches(msg, keys.Reconnect):
		m.reconnect()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) toggleFocus() {
	if m.focus == focusHosts {
		m.focus = focusInput
		m.input.Focus()
		return
	}
	m.focus = focusHosts
	m.input.Blur()
}

// selectHost points the session and the log stream at host.
func (m *Model) selectHost(host string) {
	if host == m.session.Host() {
		return
	}
	log.Info().Str("host", host).Msg("selecting host")
	m.input.Reset()
	m.session.SelectHost(m.ctx, host)
	if m.logs != nil {
		m.logs.Follow(m.ctx, host)
	}
	m.status = "Connecting to " + host
}

func (m *Model) reconnect() {
	if m.session.Reconnect(m.ctx) {
		m.status = "Reconnecting to " + m.session.Host()
		return
	}
	if m.session.Host() == "" {
		m.status = "No host selected"
	}
}

func (m Model) highlighted() (apiclient.Agent, bool) {
	if m.cursor < 0 || m.cursor >= len(m.agents) {
		return apiclient.Agent{}, false
	}
	return m.agents[m.cursor], true
}

func (m Model) indexOf(host string) int {
	for i, a := range m.agents {
		if a.ID == host {
			return i
		}
	}
	return -1
}

// vulnNames returns the highlighted agent's flag names in a stable order.
func (m Model) vulnNames() []string {
	a, ok := m.highlighted()
	if !ok {
		return nil
	}
	return slices.Sorted(maps.Keys(a.Vulnerabilities))
}

func (m Model) toggleVulnerability() tea.Cmd {
	a, ok := m.highlighted()
	names := m.vulnNames()
	if !ok || m.vulnCursor >= len(names) {
		return nil
	}
	name := names[m.vulnCursor]
	enable := !a.Vulnerabilities[name]
	api := m.api
	ctx := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, apiTimeout)
		defer cancel()
		vulns, err := api.ToggleVulnerability(ctx, a.ID, name, enable)
		if err != nil {
			return errMsg{fmt.Errorf("toggle %s on %s: %w", name, a.ID, err)}
		}
		return toggledMsg{agent: a.ID, vulns: vulns}
	}
}

func (m Model) loadAgents() tea.Cmd {
	api := m.api
	ctx := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, apiTimeout)
		defer cancel()
		agents, err := api.ListAgents(ctx)
		if err != nil {
			return errMsg{fmt.Errorf("load agents: %w", err)}
		}
		return agentsLoadedMsg{agents: agents}
	}
}

// refresh re-renders the transcript and log panes from their buffers.
func (m *Model) refresh() {
	width := m.transcript.Width
	m.transcript.SetContent(renderEntries(m.session.Entries(), width))
	m.transcript.GotoBottom()
	if m.logs != nil {
		m.logView.SetContent(renderEntries(m.logs.Entries(), width))
		m.logView.GotoBottom()
	}
}

func (m *Model) layout() {
	sideWidth := 32
	mainWidth := m.width - sideWidth - 4
	if mainWidth < 20 {
		mainWidth = 20
	}
	// header, input, help and status lines plus pane borders
	avail := m.height - 10
	if avail < 6 {
		avail = 6
	}
	m.logView.Width = mainWidth
	m.logView.Height = avail / 3
	m.transcript.Width = mainWidth
	m.transcript.Height = avail - m.logView.Height
	m.input.Width = m.width - 6
}

// renderEntries styles each entry by origin, one line per entry.
func renderEntries(entries []terminal.Entry, width int) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		style := entryStyle(e.Origin)
		if width > 0 {
			style = style.MaxWidth(width)
		}
		b.WriteString(style.Render(e.Text))
	}
	return b.String()
}

func (m Model) View() string {
	header := HeaderStyle.Render(m.headerText())

	side := m.renderHosts() + "\n\n" + m.renderVulns()
	sideStyle := PaneStyle
	inputStyle := PaneStyle
	if m.focus == focusHosts {
		sideStyle = FocusedPaneStyle
	} else {
		inputStyle = FocusedPaneStyle
	}
	sidePane := sideStyle.Width(32).Render(side)

	main := lipgloss.JoinVertical(lipgloss.Left,
		PaneStyle.Render(TitleStyle.Render("Terminal")+"\n"+m.transcript.View()),
		PaneStyle.Render(TitleStyle.Render("Logs")+"\n"+m.logView.View()),
	)
	body := lipgloss.JoinHorizontal(lipgloss.Top, sidePane, main)
	inputView := inputStyle.Render(m.input.View())

	lines := []string{header, body, inputView}
	if m.err != nil {
		lines = append(lines, ErrorStyle.Render("Error: "+m.err.Error()))
	} else if m.status != "" {
		lines = append(lines, StatusStyle.Render(m.status))
	}
	lines = append(lines, HelpStyle.Render(m.helpText()))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) headerText() string {
	host := m.session.Host()
	if host == "" {
		return "wincvex console | no host"
	}
	return fmt.Sprintf("wincvex console | %s | %s", host, m.session.State())
}

func (m Model) renderHosts() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Hosts"))
	current := m.session.Host()
	for i, a := range m.agents {
		b.WriteByte('\n')
		marker := "  "
		if a.ID == current {
			marker = "* "
		}
		name := a.DisplayName
		if name == "" {
			name = a.ID
		}
		if i == m.cursor {
			b.WriteString(SelectedItemStyle.Render("> " + marker + name))
		} else {
			b.WriteString(ItemStyle.Render("  " + marker + name))
		}
	}
	if len(m.agents) == 0 {
		b.WriteString("\n" + ItemStyle.Render("(none)"))
	}
	return b.String()
}

func (m Model) renderVulns() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Vulnerabilities"))
	a, ok := m.highlighted()
	if !ok {
		return b.String()
	}
	for i, name := range m.vulnNames() {
		b.WriteByte('\n')
		box := DisabledStyle.Render("[ ]")
		if a.Vulnerabilities[name] {
			box = EnabledStyle.Render("[x]")
		}
		label := ItemStyle.Render(name)
		if i == m.vulnCursor {
			label = SelectedItemStyle.Render(name)
		}
		b.WriteString(box + " " + label)
	}
	return b.String()
}

func (m Model) helpText() string {
	if m.focus == focusHosts {
		return "↑/↓ host • enter connect • ←/→ flag • v toggle • tab input • ctrl+r reconnect • q quit"
	}
	return "enter send • ↑/↓ history • ctrl+l clear • ctrl+r reconnect • tab hosts • ctrl+c quit"
}
