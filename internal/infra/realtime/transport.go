package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one established push channel.
type Conn interface {
	// ReadMessage blocks until the next frame arrives or the channel fails.
	ReadMessage() ([]byte, error)

	// Close closes the channel. A blocked ReadMessage returns an error.
	Close() error
}

// Dialer opens push channels presenting token.
type Dialer interface {
	Dial(ctx context.Context, rawURL, token string) (Conn, error)
}

// HandshakeError is returned when the server answers the upgrade with an
// HTTP status instead of switching protocols.
type HandshakeError struct {
	Err    error
	Status int
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake rejected with status %d: %v", e.Status, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// WSDialer dials WebSocket channels with gorilla/websocket.
type WSDialer struct {
	dialer *websocket.Dialer
}

// Ensure WSDialer implements Dialer.
var _ Dialer = (*WSDialer)(nil)

// NewWSDialer creates a WSDialer.
func NewWSDialer() *WSDialer {
	return &WSDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Dial connects to rawURL, presenting token both as a bearer header and as
// the token query parameter.
func (d *WSDialer) Dial(ctx context.Context, rawURL, token string) (Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse realtime url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := d.dialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, &HandshakeError{Status: resp.StatusCode, Err: err}
		}
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
