package terminal

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wincvex/console/internal/logutil"
	"github.com/wincvex/console/internal/protocol"
)

// LogTailConfig configures a LogTail.
type LogTailConfig struct {
	Origin      string
	MaxLines    int
	DialTimeout time.Duration
	Dialer      Dialer
	OnChange    func()
}

// LogTail follows the log stream of the selected host. It uses the same
// Channel state machine as the interactive session but is read-only, and its
// buffer keeps only the most recent lines.
type LogTail struct {
	cfg    LogTailConfig
	dialer Dialer
	logger zerolog.Logger

	mu      sync.Mutex
	host    string
	gen     uint64
	channel *Channel
	buffer  *DisplayBuffer
}

// NewLogTail creates a log tail with no host. MaxLines <= 0 uses
// DefaultLogStreamLines.
func NewLogTail(cfg LogTailConfig) *LogTail {
	if cfg.MaxLines <= 0 {
		cfg.MaxLines = DefaultLogStreamLines
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = WSDialer{}
	}
	return &LogTail{
		cfg:    cfg,
		dialer: dialer,
		logger: log.With().Str("module", "logtail").Logger(),
		buffer: NewDisplayBuffer(cfg.MaxLines),
	}
}

// Follow switches the stream to host, discarding lines of the previous host.
// An empty host stops following.
func (t *LogTail) Follow(ctx context.Context, host string) {
	t.mu.Lock()
	t.gen++
	if t.channel != nil {
		t.channel.Teardown()
		t.channel = nil
	}
	t.buffer.Clear()
	t.host = host
	if host != "" {
		t.openLocked(ctx)
	}
	t.mu.Unlock()
	t.changed()
}

// Stop tears the stream down silently.
func (t *LogTail) Stop() {
	t.mu.Lock()
	t.gen++
	if t.channel != nil {
		t.channel.Teardown()
		t.channel = nil
	}
	t.mu.Unlock()
}

// Host returns the followed host.
func (t *LogTail) Host() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.host
}

// State returns the state of the stream channel.
func (t *LogTail) State() ConnState {
	t.mu.Lock()
	ch := t.channel
	t.mu.Unlock()
	if ch == nil {
		return StateDisconnected
	}
	return ch.State()
}

// Snapshot returns the buffered log lines.
func (t *LogTail) Snapshot() iter.Seq[Entry] {
	return t.buffer.Snapshot()
}

// Entries returns a copy of the buffered log lines.
func (t *LogTail) Entries() []Entry {
	return t.buffer.Entries()
}

func (t *LogTail) openLocked(ctx context.Context) {
	gen := t.gen
	host := t.host
	rawURL, err := BuildURL(t.cfg.Origin, LogsPath(host), "")
	ch := NewChannel(gen, host, rawURL, t.dialer, t.cfg.DialTimeout, Handlers{
		Message: func(g uint64, env protocol.Envelope) {
			t.appendIfCurrent(g, envelopeEntry(env))
		},
		Error: func(g uint64, err error) {
			t.appendIfCurrent(g, Entry{Origin: OriginError, Text: "Log stream error: " + err.Error()})
		},
		Close: func(g uint64, _ *CloseError) {
			t.appendIfCurrent(g, Entry{Origin: OriginStatus, Text: "Log stream closed"})
		},
	})
	t.channel = ch
	if openErr := ch.Open(ctx); err == nil {
		err = openErr
	}
	if err != nil {
		t.logger.Warn().Err(err).Str("host", logutil.SanitizeForLog(host)).Msg("log stream unavailable")
		t.buffer.Append(Entry{Origin: OriginError, Text: "Log stream unavailable: " + err.Error()})
	}
}

func (t *LogTail) appendIfCurrent(gen uint64, e Entry) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.buffer.Append(e)
	t.mu.Unlock()
	t.changed()
}

func (t *LogTail) changed() {
	if t.cfg.OnChange != nil {
		t.cfg.OnChange()
	}
}
