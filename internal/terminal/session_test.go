package terminal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/wincvex/console/internal/protocol"
)

func newTestManager(t *testing.T, d Dialer, opts ...func(*Config)) *SessionManager {
	t.Helper()
	cfg := Config{Origin: "http://test.local", Dialer: d}
	for _, o := range opts {
		o(&cfg)
	}
	m := NewSessionManager(cfg)
	t.Cleanup(m.Close)
	return m
}

func texts(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Text
	}
	return out
}

func waitConnected(t *testing.T, m *SessionManager) {
	t.Helper()
	waitFor(t, m.Connected)
}

func waitEntries(t *testing.T, m *SessionManager, n int) []Entry {
	t.Helper()
	waitFor(t, func() bool { return len(m.Entries()) >= n })
	return m.Entries()
}

func TestSessionManager_SubmitScenario(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, d)

	m.SelectHost(context.Background(), "A")
	waitConnected(t, m)
	if urls := d.URLs(); len(urls) != 1 || urls[0] != "ws://test.local/api/ws?host=A" {
		t.Fatalf("unexpected dial URLs %v", urls)
	}

	m.Submit(context.Background(), "whoami")
	conn := d.conn(t, 0)
	want := `{"type":"command","command":"whoami","host":"A"}`
	if w := conn.Writes(); len(w) != 1 || w[0] != want {
		t.Fatalf("expected %s on the wire, got %v", want, w)
	}

	conn.push(`{"type":"line","text":"SYSTEM"}`)
	got := waitEntries(t, m, 3)

	expected := []Entry{
		{Origin: OriginStatus, Text: "Connected to A"},
		{Origin: OriginEcho, Text: "$ whoami"},
		{Origin: OriginOutput, Text: "SYSTEM"},
	}
	if len(got) != len(expected) {
		t.Fatalf("expected %v, got %v", texts(expected), texts(got))
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("entry %d: expected %+v, got %+v", i, expected[i], got[i])
		}
	}
}

func TestSessionManager_SubmitTrimsCommand(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, d)
	m.SelectHost(context.Background(), "A")
	waitConnected(t, m)

	m.Submit(context.Background(), "  ls  ")
	w := d.conn(t, 0).Writes()
	if len(w) != 1 || !strings.Contains(w[0], `"command":"ls"`) {
		t.Errorf("unexpected writes %v", w)
	}
}

func TestSessionManager_SubmitWhitespaceIsNoop(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, d)
	m.SelectHost(context.Background(), "A")
	waitConnected(t, m)

	before := len(m.Entries())
	m.Submit(context.Background(), "   ")
	if len(m.Entries()) != before {
		t.Error("whitespace submit should not echo")
	}
	if m.HistoryLen() != 0 {
		t.Error("whitespace submit should not be recorded")
	}
	if w := d.conn(t, 0).Writes(); len(w) != 0 {
		t.Errorf("whitespace submit should not send, got %v", w)
	}
}

func TestSessionManager_SubmitWithoutHost(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, d)

	m.Submit(context.Background(), "ls")

	got := m.Entries()
	if len(got) != 2 {
		t.Fatalf("expected echo and warning, got %v", texts(got))
	}
	if got[0] != (Entry{Origin: OriginEcho, Text: "$ ls"}) {
		t.Errorf("unexpected echo %+v", got[0])
	}
	if got[1] != (Entry{Origin: OriginStatus, Text: NotConnectedWarning}) {
		t.Errorf("unexpected warning %+v", got[1])
	}
	if d.dialCount() != 0 {
		t.Error("submit must not dial")
	}
	if r := m.RecallOlder(""); r != "ls" {
		t.Errorf("command should still be recallable, got %q", r)
	}
}

func TestSessionManager_SubmitWhileConnecting(t *testing.T) {
	d := &fakeDialer{gate: make(chan struct{})}
	m := newTestManager(t, d)
	m.SelectHost(context.Background(), "A")

	if m.State() != StateConnecting {
		t.Fatalf("expected connecting, got %s", m.State())
	}
	m.Submit(context.Background(), "ls")
	got := m.Entries()
	if len(got) != 2 || got[1].Text != NotConnectedWarning {
		t.Fatalf("expected warning, got %v", texts(got))
	}

	close(d.gate)
	waitConnected(t, m)
	if w := d.conn(t, 0).Writes(); len(w) != 0 {
		t.Errorf("command submitted while connecting must never be sent, got %v", w)
	}
}

func TestSessionManager_HostSwitchResets(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, d)

	m.SelectHost(context.Background(), "A")
	waitConnected(t, m)
	m.Submit(context.Background(), "ls")
	connA := d.conn(t, 0)
	genA := m.Generation()

	m.SelectHost(context.Background(), "B")
	if !connA.isClosed() {
		t.Error("old transport should be closed")
	}
	if m.Host() != "B" {
		t.Errorf("expected host B, got %q", m.Host())
	}
	if m.HistoryLen() != 0 {
		t.Error("history should be reset on host change")
	}
	if r := m.RecallOlder("typed"); r != "typed" {
		t.Errorf("no recall expected after switch, got %q", r)
	}
	if m.Generation() <= genA {
		t.Error("generation should advance")
	}

	waitConnected(t, m)
	// A late event from A must be dropped.
	m.handleMessage(genA, protocol.Line("late from A"))
	m.handleClose(genA, &CloseError{Code: 1000})

	got := m.Entries()
	if len(got) != 1 || got[0].Text != "Connected to B" {
		t.Errorf("expected only B's entries, got %v", texts(got))
	}
}

func TestSessionManager_SwitchWhileConnecting(t *testing.T) {
	gate := make(chan struct{})
	d := &fakeDialer{gate: gate}
	m := newTestManager(t, d)

	m.SelectHost(context.Background(), "A")
	m.SelectHost(context.Background(), "B")
	close(gate)
	waitConnected(t, m)

	got := m.Entries()
	for _, e := range got {
		if strings.Contains(e.Text, "A") {
			t.Errorf("entry from A leaked into B's transcript: %+v", e)
		}
	}
	if len(got) != 1 || got[0].Text != "Connected to B" {
		t.Errorf("unexpected entries %v", texts(got))
	}
}

func TestSessionManager_SelectEmptyHost(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, d)
	m.SelectHost(context.Background(), "A")
	waitConnected(t, m)
	conn := d.conn(t, 0)

	m.SelectHost(context.Background(), "")
	if !conn.isClosed() {
		t.Error("expected teardown")
	}
	if m.State() != StateDisconnected {
		t.Errorf("expected disconnected, got %s", m.State())
	}
	if len(m.Entries()) != 0 {
		t.Error("expected empty transcript")
	}
	if d.dialCount() != 1 {
		t.Error("empty host must not dial")
	}
}

func TestSessionManager_PeerCloseAndReconnect(t *testing.T) {
	d := &fakeDialer{}
	var closedHost atomic.Value
	var closedCause atomic.Value
	m := newTestManager(t, d, func(c *Config) {
		c.OnChannelClosed = func(host string, cause error) {
			closedHost.Store(host)
			closedCause.Store(cause)
		}
	})

	m.SelectHost(context.Background(), "A")
	waitConnected(t, m)
	m.Submit(context.Background(), "ls")
	d.conn(t, 0).peerClose(1000, "agent shutting down")

	waitFor(t, func() bool { return m.State() == StateClosed })
	waitFor(t, func() bool { return closedHost.Load() != nil })
	if closedHost.Load().(string) != "A" {
		t.Errorf("unexpected closed host %v", closedHost.Load())
	}
	var ce *CloseError
	if !errors.As(closedCause.Load().(error), &ce) || ce.Code != 1000 {
		t.Errorf("unexpected cause %v", closedCause.Load())
	}

	got := m.Entries()
	last := got[len(got)-1]
	if last != (Entry{Origin: OriginStatus, Text: "Disconnected from A: agent shutting down"}) {
		t.Errorf("unexpected last entry %+v", last)
	}
	if m.Connected() {
		t.Error("should not be connected")
	}

	m.Submit(context.Background(), "whoami")
	got = m.Entries()
	if got[len(got)-1].Text != NotConnectedWarning {
		t.Errorf("expected warning after close, got %v", texts(got))
	}

	if !m.Reconnect(context.Background()) {
		t.Fatal("expected reconnect to start")
	}
	waitConnected(t, m)
	if d.dialCount() != 2 {
		t.Errorf("expected second dial, got %d", d.dialCount())
	}
	if m.HistoryLen() != 2 {
		t.Errorf("reconnect must keep history, got %d", m.HistoryLen())
	}
	got = m.Entries()
	if got[0].Text != "Connected to A" || got[len(got)-1].Text != "Connected to A" {
		t.Errorf("reconnect must keep the transcript, got %v", texts(got))
	}
	if m.Reconnect(context.Background()) {
		t.Error("reconnect while connected should be a no-op")
	}
}

func TestSessionManager_NoAutomaticReconnect(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, d)
	m.SelectHost(context.Background(), "A")
	waitConnected(t, m)
	d.conn(t, 0).peerClose(1001, "")
	got := waitEntries(t, m, 2)

	if got[1].Text != "Disconnected from A" {
		t.Errorf("unexpected entry %q", got[1].Text)
	}
	if m.State() != StateClosed {
		t.Errorf("expected closed, got %s", m.State())
	}
	if d.dialCount() != 1 {
		t.Errorf("manager must not reconnect on its own, dials=%d", d.dialCount())
	}
}

func TestSessionManager_DialError(t *testing.T) {
	d := &fakeDialer{err: errors.New("connection refused")}
	var calls atomic.Int32
	m := newTestManager(t, d, func(c *Config) {
		c.OnChannelClosed = func(string, error) { calls.Add(1) }
	})

	m.SelectHost(context.Background(), "A")
	got := waitEntries(t, m, 1)
	if got[0].Origin != OriginError || !strings.Contains(got[0].Text, "connection refused") {
		t.Errorf("unexpected entry %+v", got[0])
	}
	waitFor(t, func() bool { return calls.Load() == 1 })
	if m.State() != StateClosed {
		t.Errorf("expected closed, got %s", m.State())
	}
}

func TestSessionManager_BadOrigin(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, d, func(c *Config) { c.Origin = "ftp://test.local" })

	m.SelectHost(context.Background(), "A")
	got := m.Entries()
	if len(got) != 1 || got[0].Origin != OriginError || !strings.HasPrefix(got[0].Text, "Cannot connect to A") {
		t.Errorf("unexpected entries %+v", got)
	}
	if m.State() != StateClosed {
		t.Errorf("expected closed, got %s", m.State())
	}
	if d.dialCount() != 0 {
		t.Error("should not dial")
	}
}

func TestSessionManager_ServerFrames(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, d)
	m.SelectHost(context.Background(), "A")
	waitConnected(t, m)

	conn := d.conn(t, 0)
	conn.push(`{"type":"status","text":"agent busy"}`)
	conn.push(`{"type":"error","text":"Empty command"}`)
	conn.push(`{"type":"line","text":"out\r\n"}`)
	conn.push(`plain text`)
	got := waitEntries(t, m, 5)[1:]

	want := []Entry{
		{Origin: OriginStatus, Text: "agent busy"},
		{Origin: OriginError, Text: "Empty command"},
		{Origin: OriginOutput, Text: "out"},
		{Origin: OriginOutput, Text: "plain text"},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestSessionManager_MaxLines(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, d, func(c *Config) { c.MaxLines = 3 })
	m.SelectHost(context.Background(), "A")
	waitConnected(t, m)

	conn := d.conn(t, 0)
	for i := 0; i < 5; i++ {
		conn.push(fmt.Sprintf(`{"type":"line","text":"%d"}`, i))
	}
	waitFor(t, func() bool {
		e := m.Entries()
		return len(e) == 3 && e[2].Text == "4"
	})
	if got := texts(m.Entries()); got[0] != "2" {
		t.Errorf("expected oldest evicted, got %v", got)
	}
}

func TestSessionManager_ClearAndClose(t *testing.T) {
	d := &fakeDialer{}
	var changes atomic.Int32
	m := newTestManager(t, d, func(c *Config) { c.OnChange = func() { changes.Add(1) } })
	m.SelectHost(context.Background(), "A")
	waitConnected(t, m)

	m.Clear()
	if len(m.Entries()) != 0 {
		t.Error("expected empty transcript after clear")
	}
	if !m.Connected() {
		t.Error("clear must not disconnect")
	}
	if changes.Load() == 0 {
		t.Error("expected change notifications")
	}

	conn := d.conn(t, 0)
	m.Close()
	if !conn.isClosed() {
		t.Error("close should tear the transport down")
	}
	m.Submit(context.Background(), "ls")
	m.SelectHost(context.Background(), "B")
	if len(m.Entries()) != 0 || d.dialCount() != 1 {
		t.Error("closed manager should ignore further calls")
	}
}

func TestSessionManager_Snapshot(t *testing.T) {
	m := newTestManager(t, &fakeDialer{})
	m.Submit(context.Background(), "ls")
	var n int
	for range m.Snapshot() {
		n++
	}
	if n != 2 {
		t.Errorf("expected 2 entries in snapshot, got %d", n)
	}
}

func TestSessionManager_ConcurrentSwitching(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, d)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.SelectHost(context.Background(), fmt.Sprintf("host-%d", i))
			m.Submit(context.Background(), "ls")
		}(i)
	}
	wg.Wait()

	m.SelectHost(context.Background(), "final")
	waitConnected(t, m)
	for _, e := range m.Entries() {
		if strings.Contains(e.Text, "host-") {
			t.Errorf("stale entry after final switch: %+v", e)
		}
	}
}
