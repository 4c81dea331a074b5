package terminal

import (
	"context"
	"fmt"
	"testing"
)

func TestLogTail_FollowsHost(t *testing.T) {
	d := &fakeDialer{}
	lt := NewLogTail(LogTailConfig{Origin: "http://test.local", Dialer: d})
	defer lt.Stop()

	lt.Follow(context.Background(), "wincvex-dc")
	conn := d.conn(t, 0)
	if urls := d.URLs(); urls[0] != "ws://test.local/api/ws/logs/wincvex-dc" {
		t.Errorf("unexpected URL %q", urls[0])
	}

	for i := 0; i < 60; i++ {
		conn.push(fmt.Sprintf("[wincvex-dc] simulated log line %d", i))
	}
	waitFor(t, func() bool {
		e := lt.Entries()
		return len(e) > 0 && e[len(e)-1].Text == "[wincvex-dc] simulated log line 59"
	})
	got := lt.Entries()
	if len(got) != DefaultLogStreamLines {
		t.Fatalf("expected %d lines, got %d", DefaultLogStreamLines, len(got))
	}
	if got[0].Text != "[wincvex-dc] simulated log line 10" {
		t.Errorf("unexpected oldest line %q", got[0].Text)
	}

	lt.Follow(context.Background(), "wincvex-host-b")
	if !conn.isClosed() {
		t.Error("previous stream should be closed")
	}
	if len(lt.Entries()) != 0 {
		t.Error("lines from the previous host should be dropped")
	}
	if lt.Host() != "wincvex-host-b" {
		t.Errorf("unexpected host %q", lt.Host())
	}
}

func TestLogTail_Stop(t *testing.T) {
	d := &fakeDialer{}
	lt := NewLogTail(LogTailConfig{Origin: "http://test.local", Dialer: d, MaxLines: 5})
	lt.Follow(context.Background(), "A")
	conn := d.conn(t, 0)
	waitFor(t, func() bool { return lt.State() == StateConnected })

	lt.Stop()
	if !conn.isClosed() {
		t.Error("expected stream closed")
	}
	if lt.State() != StateDisconnected {
		t.Errorf("expected disconnected, got %s", lt.State())
	}
}
