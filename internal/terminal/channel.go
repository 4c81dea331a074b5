package terminal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wincvex/console/internal/logutil"
	"github.com/wincvex/console/internal/protocol"
)

// ConnState is the lifecycle state of a Channel.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateClosed       ConnState = "closed"
)

// String returns the string representation of a ConnState.
func (s ConnState) String() string {
	return string(s)
}

// StateTransition records a state change for debugging.
type StateTransition struct {
	From      ConnState `json:"from"`
	To        ConnState `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// maxTransitions limits the number of stored state transitions per channel.
const maxTransitions = 50

// ErrNotConnected is returned by Send when the channel is not Connected.
var ErrNotConnected = errors.New("channel not connected")

// ErrAlreadyOpened is returned when Open is called twice on one channel.
var ErrAlreadyOpened = errors.New("channel already opened")

// Handlers receive the channel's transport events. Every callback carries
// the channel generation so the owner can drop events from channels it has
// already replaced. Callbacks for one channel are invoked sequentially, in
// transport order, and never while the channel's own lock is held.
type Handlers struct {
	Open    func(gen uint64)
	Message func(gen uint64, env protocol.Envelope)
	Error   func(gen uint64, err error)
	Close   func(gen uint64, cause *CloseError)
}

// Channel is one logical connection to one host. It moves through
// Disconnected → Connecting → Connected → Closed and can be torn down back to
// Disconnected from any state. A Channel is single-use: once it has left
// Disconnected it cannot be opened again.
type Channel struct {
	ID   string
	Host string
	URL  string

	gen      uint64
	dialer   Dialer
	timeout  time.Duration
	handlers Handlers
	logger   zerolog.Logger

	mu          sync.Mutex
	state       ConnState
	opened      bool
	conn        Conn
	cancel      context.CancelFunc
	transitions []StateTransition
	done        chan struct{}
}

// NewChannel creates a Disconnected channel. dialTimeout <= 0 means the
// Connecting state lasts until the transport reports open or error.
func NewChannel(gen uint64, host, rawURL string, dialer Dialer, dialTimeout time.Duration, h Handlers) *Channel {
	id := uuid.New().String()
	return &Channel{
		ID:       id,
		Host:     host,
		URL:      rawURL,
		gen:      gen,
		dialer:   dialer,
		timeout:  dialTimeout,
		handlers: h,
		logger: log.With().
			Str("module", "terminal").
			Str("channel", id).
			Str("host", logutil.SanitizeForLog(host)).
			Uint64("gen", gen).
			Logger(),
		state: StateDisconnected,
		done:  make(chan struct{}),
	}
}

// Gen returns the generation this channel was created with.
func (c *Channel) Gen() uint64 {
	return c.gen
}

// State returns the current state.
func (c *Channel) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transitions returns a copy of the recorded state transitions.
func (c *Channel) Transitions() []StateTransition {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]StateTransition, len(c.transitions))
	copy(result, c.transitions)
	return result
}

// Done is closed once the transport goroutine has exited.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// validTransition reports whether from → to is allowed.
func validTransition(from, to ConnState) bool {
	switch to {
	case StateConnecting:
		return from == StateDisconnected
	case StateConnected:
		return from == StateConnecting
	case StateClosed:
		return from == StateConnecting || from == StateConnected
	case StateDisconnected:
		return from != StateDisconnected
	}
	return false
}

// transitionLocked moves to the new state if the move is allowed and
// records it. Caller must hold c.mu.
func (c *Channel) transitionLocked(to ConnState) bool {
	from := c.state
	if !validTransition(from, to) {
		return false
	}
	c.state = to
	c.transitions = append(c.transitions, StateTransition{From: from, To: to, Timestamp: time.Now()})
	if len(c.transitions) > maxTransitions {
		c.transitions = c.transitions[len(c.transitions)-maxTransitions:]
	}
	c.logger.Debug().Str("from", string(from)).Str("to", string(to)).Msg("state change")
	return true
}

func (c *Channel) transition(to ConnState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transitionLocked(to)
}

// Open validates the URL, enters Connecting and starts dialing in the
// background. A URL that cannot be used moves the channel straight to Closed
// and is returned as an error; no handler is invoked in that case.
func (c *Channel) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.opened {
		c.mu.Unlock()
		return ErrAlreadyOpened
	}
	c.opened = true
	c.transitionLocked(StateConnecting)

	if err := checkURL(c.URL); err != nil {
		c.transitionLocked(StateClosed)
		c.mu.Unlock()
		close(c.done)
		c.logger.Warn().Err(err).Msg("transport construction failed")
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(runCtx)
	return nil
}

// run dials and then relays inbound messages until the transport ends.
func (c *Channel) run(ctx context.Context) {
	defer close(c.done)

	dialCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	conn, err := c.dialer.Dial(dialCtx, c.URL)
	if err != nil {
		c.logger.Warn().Err(err).Msg("dial failed")
		if c.transition(StateClosed) && c.handlers.Error != nil {
			c.handlers.Error(c.gen, err)
		}
		return
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		// Torn down while dialing.
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.transitionLocked(StateConnected)
	c.mu.Unlock()
	defer conn.Close()

	c.logger.Info().Msg("connected")
	if c.handlers.Open != nil {
		c.handlers.Open(c.gen)
	}

	for {
		data, err := conn.Read(ctx)
		if err != nil {
			c.finish(err)
			return
		}
		if c.State() != StateConnected {
			return
		}
		if c.handlers.Message != nil {
			c.handlers.Message(c.gen, protocol.Decode(data))
		}
	}
}

// finish moves a live channel to Closed and reports why.
func (c *Channel) finish(err error) {
	if !c.transition(StateClosed) {
		return
	}
	var ce *CloseError
	if errors.As(err, &ce) {
		c.logger.Info().Int("code", ce.Code).Str("reason", ce.Reason).Msg("closed by peer")
		if c.handlers.Close != nil {
			c.handlers.Close(c.gen, ce)
		}
		return
	}
	c.logger.Warn().Err(err).Msg("transport error")
	if c.handlers.Error != nil {
		c.handlers.Error(c.gen, err)
	}
}

// Send encodes and writes a command envelope. It fails with ErrNotConnected
// unless the channel is Connected.
func (c *Channel) Send(ctx context.Context, env protocol.Envelope) error {
	c.mu.Lock()
	if c.state != StateConnected || c.conn == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	conn := c.conn
	c.mu.Unlock()

	data, err := protocol.Encode(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", env.Type, err)
	}
	if err := conn.Write(ctx, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Teardown moves the channel to Disconnected and closes the transport. The
// transition happens before the transport is closed, so no handler fires for
// anything the transport reports afterwards. Teardown is silent and
// idempotent.
func (c *Channel) Teardown() {
	c.mu.Lock()
	if !c.transitionLocked(StateDisconnected) {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	cancel := c.cancel
	c.conn = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	c.logger.Debug().Msg("torn down")
}
