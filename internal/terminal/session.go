package terminal

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wincvex/console/internal/logutil"
	"github.com/wincvex/console/internal/protocol"
)

// NotConnectedWarning is appended when a command is submitted without a
// connected channel.
const NotConnectedWarning = "Not connected; command not sent"

// Config holds the settings a SessionManager needs. Everything is passed in
// explicitly; nothing is read from the environment here.
type Config struct {
	// Origin is the base URL of the agent service, e.g. "https://console.example".
	Origin string
	// Path is the terminal endpoint. Empty uses DefaultPath.
	Path string
	// MaxLines bounds the transcript. Zero keeps it unbounded.
	MaxLines int
	// DialTimeout bounds the Connecting state. Zero waits for the transport.
	DialTimeout time.Duration
	// Dialer opens transports. Nil uses WSDialer.
	Dialer Dialer
	// OnChange is called after every transcript mutation and state change.
	// It runs without the manager lock held and must not block for long.
	OnChange func()
	// OnChannelClosed is the recovery policy hook. It is called after a
	// channel closes or fails on its own (not after teardown). The manager
	// never reconnects by itself.
	OnChannelClosed func(host string, cause error)
}

// SessionManager binds one Channel to the currently selected host and keeps
// the transcript and command history in step with host changes.
//
// All state changes happen under mu as single critical sections. Transport
// callbacks carry the generation of the channel that produced them and are
// dropped unless that channel is still the current one.
type SessionManager struct {
	cfg    Config
	dialer Dialer
	logger zerolog.Logger

	mu        sync.Mutex
	host      string
	gen       uint64
	channel   *Channel
	connected bool
	buffer    *DisplayBuffer
	history   *History
	closed    bool
}

// NewSessionManager creates a manager with no host selected.
func NewSessionManager(cfg Config) *SessionManager {
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = WSDialer{}
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	return &SessionManager{
		cfg:     cfg,
		dialer:  dialer,
		logger:  log.With().Str("module", "session-mgr").Logger(),
		buffer:  NewDisplayBuffer(cfg.MaxLines),
		history: NewHistory(),
	}
}

// SelectHost switches the session to host. The current channel is torn
// down, history and transcript are reset, and a fresh channel starts
// connecting, all before any entry from the new channel can arrive.
// Selecting an empty host only tears down.
func (m *SessionManager) SelectHost(ctx context.Context, host string) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.teardownLocked()
	m.history.Reset()
	m.buffer.Clear()
	m.host = host
	if host != "" {
		m.openLocked(ctx)
	}
	m.mu.Unlock()

	m.logger.Info().Str("host", logutil.SanitizeForLog(host)).Msg("host selected")
	m.changed()
}

// Reconnect opens a fresh channel for the current host when the previous
// one has closed or was never opened. Transcript and history are kept.
// It reports whether a new channel was started.
func (m *SessionManager) Reconnect(ctx context.Context) bool {
	m.mu.Lock()
	if m.closed || m.host == "" {
		m.mu.Unlock()
		return false
	}
	if m.channel != nil {
		switch m.channel.State() {
		case StateConnecting, StateConnected:
			m.mu.Unlock()
			return false
		}
	}
	m.teardownLocked()
	m.openLocked(ctx)
	m.mu.Unlock()

	m.changed()
	return true
}

// Submit records text in history, echoes it and sends it to the current
// host. Whitespace-only input does nothing. Without a connected channel a
// warning is appended instead of sending; the command stays in history.
func (m *SessionManager) Submit(ctx context.Context, text string) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	command, ok := m.history.Submit(text)
	if !ok {
		m.mu.Unlock()
		return
	}
	command = strings.TrimSpace(command)
	m.buffer.Append(Entry{Origin: OriginEcho, Text: "$ " + command})
	if !m.connected || m.channel == nil {
		m.buffer.Append(Entry{Origin: OriginStatus, Text: NotConnectedWarning})
		m.mu.Unlock()
		m.changed()
		return
	}
	ch := m.channel
	host := m.host
	m.mu.Unlock()
	m.changed()

	m.logger.Debug().
		Str("host", logutil.SanitizeForLog(host)).
		Str("command", logutil.Command(command)).
		Msg("sending command")
	if err := ch.Send(ctx, protocol.Command(command, host)); err != nil {
		m.appendIfCurrent(ch.Gen(), Entry{Origin: OriginError, Text: fmt.Sprintf("Failed to send command: %v", err)})
	}
}

// RecallOlder returns the previous history entry. current is the text in
// the input line right now.
func (m *SessionManager) RecallOlder(current string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.RecallOlder(current)
}

// RecallNewer returns the next history entry, or the draft when leaving
// history.
func (m *SessionManager) RecallNewer() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.RecallNewer()
}

// Browsing reports whether a history recall is in progress.
func (m *SessionManager) Browsing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.Browsing()
}

// HistoryLen returns the number of recorded commands.
func (m *SessionManager) HistoryLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.Len()
}

// Clear empties the transcript on user request.
func (m *SessionManager) Clear() {
	m.mu.Lock()
	m.buffer.Clear()
	m.mu.Unlock()
	m.changed()
}

// Close tears the channel down silently. The manager cannot be used
// afterwards.
func (m *SessionManager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.teardownLocked()
	m.mu.Unlock()
}

// Host returns the selected host, or "" if none.
func (m *SessionManager) Host() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.host
}

// Connected reports whether commands can be sent right now.
func (m *SessionManager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// State returns the state of the current channel, or Disconnected.
func (m *SessionManager) State() ConnState {
	m.mu.Lock()
	ch := m.channel
	m.mu.Unlock()
	if ch == nil {
		return StateDisconnected
	}
	return ch.State()
}

// Generation returns the generation of the current channel.
func (m *SessionManager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// Snapshot returns the transcript as a restartable sequence.
func (m *SessionManager) Snapshot() iter.Seq[Entry] {
	return m.buffer.Snapshot()
}

// Entries returns a copy of the transcript.
func (m *SessionManager) Entries() []Entry {
	return m.buffer.Entries()
}

// teardownLocked bumps the generation so callbacks of the old channel are
// ignored, then tears it down. Caller must hold m.mu.
func (m *SessionManager) teardownLocked() {
	m.gen++
	m.connected = false
	if m.channel != nil {
		m.channel.Teardown()
		m.channel = nil
	}
}

// openLocked starts a channel for m.host at the current generation. Caller
// must hold m.mu.
func (m *SessionManager) openLocked(ctx context.Context) {
	gen := m.gen
	host := m.host
	rawURL, err := BuildURL(m.cfg.Origin, m.cfg.Path, host)
	ch := NewChannel(gen, host, rawURL, m.dialer, m.cfg.DialTimeout, Handlers{
		Open:    m.handleOpen,
		Message: m.handleMessage,
		Error:   m.handleError,
		Close:   m.handleClose,
	})
	m.channel = ch
	// An unusable URL still goes through Open so the channel ends up Closed.
	if openErr := ch.Open(ctx); err == nil {
		err = openErr
	}
	if err != nil {
		m.buffer.Append(Entry{Origin: OriginError, Text: fmt.Sprintf("Cannot connect to %s: %v", host, err)})
		m.logger.Warn().Err(err).Str("host", logutil.SanitizeForLog(host)).Msg("channel construction failed")
	}
}

func (m *SessionManager) handleOpen(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.connected = true
	m.buffer.Append(Entry{Origin: OriginStatus, Text: "Connected to " + m.host})
	m.mu.Unlock()
	m.changed()
}

func (m *SessionManager) handleMessage(gen uint64, env protocol.Envelope) {
	m.appendIfCurrent(gen, envelopeEntry(env))
}

func (m *SessionManager) handleError(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.connected = false
	host := m.host
	m.buffer.Append(Entry{Origin: OriginError, Text: fmt.Sprintf("Connection error on %s: %v", host, err)})
	m.mu.Unlock()
	m.changed()
	m.channelClosed(host, err)
}

func (m *SessionManager) handleClose(gen uint64, cause *CloseError) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.connected = false
	host := m.host
	text := "Disconnected from " + host
	if cause != nil && cause.Reason != "" {
		text += ": " + cause.Reason
	}
	m.buffer.Append(Entry{Origin: OriginStatus, Text: text})
	m.mu.Unlock()
	m.changed()
	m.channelClosed(host, cause)
}

// appendIfCurrent appends e only if gen is still the current generation.
func (m *SessionManager) appendIfCurrent(gen uint64, e Entry) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		m.logger.Debug().Uint64("gen", gen).Msg("dropped stale event")
		return
	}
	m.buffer.Append(e)
	m.mu.Unlock()
	m.changed()
}

func (m *SessionManager) channelClosed(host string, cause error) {
	if m.cfg.OnChannelClosed != nil {
		m.cfg.OnChannelClosed(host, cause)
	}
}

func (m *SessionManager) changed() {
	if m.cfg.OnChange != nil {
		m.cfg.OnChange()
	}
}

// envelopeEntry maps a decoded server envelope to a transcript entry.
func envelopeEntry(env protocol.Envelope) Entry {
	switch env.Type {
	case protocol.TypeStatus:
		return Entry{Origin: OriginStatus, Text: env.Text}
	case protocol.TypeError:
		return Entry{Origin: OriginError, Text: env.Text}
	default:
		return Entry{Origin: OriginOutput, Text: strings.TrimRight(env.Text, "\r\n")}
	}
}
