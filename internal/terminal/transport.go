package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/coder/websocket"
)

// defaultReadLimit caps a single inbound frame. Agents send short lines; the
// limit only guards against runaway payloads.
const defaultReadLimit = 1024 * 1024

// Conn is a live, message-oriented transport to one host.
type Conn interface {
	// Read blocks until the next message arrives. When the peer closes the
	// connection the error is a *CloseError.
	Read(ctx context.Context) ([]byte, error)
	// Write sends one text message.
	Write(ctx context.Context, data []byte) error
	// Close tears the connection down immediately without waiting for the
	// peer.
	Close() error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Conn, error)
}

// CloseError reports that the transport was closed, cleanly or not.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("connection closed (%d): %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("connection closed (%d)", e.Code)
}

// statusAbnormalClosure is used when the connection went away without a close frame.
const statusAbnormalClosure = int(websocket.StatusAbnormalClosure)

// WSDialer dials WebSocket endpoints with github.com/coder/websocket.
type WSDialer struct {
	// HTTPHeader is sent with the opening handshake.
	HTTPHeader http.Header
	// ReadLimit caps inbound message size. Zero uses defaultReadLimit.
	ReadLimit int64
}

// Dial implements Dialer.
func (d WSDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	c, _, err := websocket.Dial(ctx, rawURL, &websocket.DialOptions{
		HTTPHeader: d.HTTPHeader,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}
	limit := d.ReadLimit
	if limit <= 0 {
		limit = defaultReadLimit
	}
	c.SetReadLimit(limit)
	return &wsConn{conn: c}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.conn.Read(ctx)
	if err != nil {
		if status := websocket.CloseStatus(err); status != -1 {
			var ce websocket.CloseError
			reason := ""
			if errors.As(err, &ce) {
				reason = ce.Reason
			}
			return nil, &CloseError{Code: int(status), Reason: reason}
		}
		if errors.Is(err, io.EOF) {
			return nil, &CloseError{Code: statusAbnormalClosure}
		}
		return nil, err
	}
	return data, nil
}

func (w *wsConn) Write(ctx context.Context, data []byte) error {
	return w.conn.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) Close() error {
	return w.conn.CloseNow()
}
