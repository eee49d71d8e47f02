package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var errDropped = errors.New("connection reset")

// fakeConn delivers frames pushed by the test until closed or dropped.
type fakeConn struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.closed:
		return nil, errDropped
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) send(frame string) {
	c.frames <- []byte(frame)
}

// drop simulates a network failure.
func (c *fakeConn) drop() {
	_ = c.Close()
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// dialResult is one scripted Dial outcome. block makes Dial wait for ctx.
type dialResult struct {
	conn  *fakeConn
	err   error
	block bool
}

// fakeDialer replays scripted results; once exhausted every Dial fails.
type fakeDialer struct {
	results []dialResult
	tokens  []string
	mu      sync.Mutex
	calls   atomic.Int32
}

func (d *fakeDialer) script(results ...dialResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results = append(d.results, results...)
}

func (d *fakeDialer) Dial(ctx context.Context, _ string, token string) (Conn, error) {
	d.calls.Add(1)
	d.mu.Lock()
	d.tokens = append(d.tokens, token)
	if len(d.results) == 0 {
		d.mu.Unlock()
		return nil, errors.New("connection refused")
	}
	r := d.results[0]
	d.results = d.results[1:]
	d.mu.Unlock()

	if r.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.conn, nil
}

func (d *fakeDialer) seenTokens() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.tokens...)
}

// tokenBox is a mutable TokenSource.
type tokenBox struct {
	v atomic.Value
}

func newTokenBox(token string) *tokenBox {
	b := &tokenBox{}
	b.v.Store(token)
	return b
}

func (b *tokenBox) AccessToken() string { return b.v.Load().(string) }
func (b *tokenBox) set(token string)    { b.v.Store(token) }
