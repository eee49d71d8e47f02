// Package realtime maintains the server push channel and turns its frames
// into domain events.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/runoshun/tracksync/internal/domain"
)

// State is the connection state of the Client.
type State string

// Connection states.
const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateGaveUp       State = "gave_up"
)

// active reports whether a connection exists or is being established.
func (s State) active() bool {
	return s == StateConnecting || s == StateConnected || s == StateReconnecting
}

// TokenSource provides the current access token.
type TokenSource interface {
	AccessToken() string
}

// Options configures the Client.
type Options struct {
	URL            string
	ConnectTimeout time.Duration
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	MaxAttempts    int
}

func (o *Options) setDefaults() {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = domain.DefaultConnectTimeout
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = domain.DefaultInitialDelay
	}
	if o.MaxDelay < o.InitialDelay {
		o.MaxDelay = o.InitialDelay
	}
	if o.MaxAttempts < 0 {
		o.MaxAttempts = 0
	}
}

// subBuffer is the per-subscriber event buffer.
const subBuffer = 64

type subscriber struct {
	events chan domain.Event
	done   chan struct{}
}

// Client owns the push channel: it connects, reconnects with backoff after
// drops and publishes decoded events to every subscriber.
// Fields are ordered to minimize memory padding.
type Client struct {
	dialer Dialer
	tokens TokenSource
	log    domain.Logger
	conn   Conn
	cancel context.CancelFunc
	subs   map[int]*subscriber
	state  State
	opts   Options
	gen    uint64
	nextID int
	mu     sync.Mutex
}

// NewClient creates a disconnected Client.
func NewClient(dialer Dialer, tokens TokenSource, log domain.Logger, opts Options) *Client {
	opts.setDefaults()
	return &Client{
		dialer: dialer,
		tokens: tokens,
		log:    log,
		opts:   opts,
		state:  StateDisconnected,
		subs:   make(map[int]*subscriber),
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers a subscriber and returns its event channel and a
// function that removes it. The channel is never closed.
func (c *Client) Subscribe() (<-chan domain.Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	sub := &subscriber{
		events: make(chan domain.Event, subBuffer),
		done:   make(chan struct{}),
	}
	c.subs[id] = sub

	var once sync.Once
	return sub.events, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(sub.done)
		})
	}
}

// Connect opens the channel with the current access token.
// It is a no-op while a connection exists or is being established.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state.active() {
		c.mu.Unlock()
		return nil
	}
	token := c.tokens.AccessToken()
	if token == "" {
		c.mu.Unlock()
		return domain.ErrNotLoggedIn
	}
	c.gen++
	gen := c.gen
	c.state = StateConnecting
	c.mu.Unlock()

	c.log.Info("realtime", "connecting")
	conn, err := c.dial(ctx, token)
	if err != nil {
		c.mu.Lock()
		if c.gen == gen {
			c.state = StateDisconnected
		}
		c.mu.Unlock()
		c.log.Warn("realtime", fmt.Sprintf("connect failed: %v", err))
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	if c.gen != gen {
		// Disconnected while dialing.
		c.mu.Unlock()
		cancel()
		_ = conn.Close()
		return nil
	}
	c.conn = conn
	c.cancel = cancel
	c.state = StateConnected
	c.mu.Unlock()

	c.log.Info("realtime", "connected")
	go c.run(runCtx, gen, conn)
	return nil
}

// Disconnect closes the channel and stops any reconnect loop.
// It is safe to call at any time and more than once.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.gen++
	conn, cancel := c.conn, c.cancel
	c.conn, c.cancel = nil, nil
	wasActive := c.state.active()
	c.state = StateDisconnected
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if wasActive {
		c.log.Info("realtime", "disconnected")
	}
}

// Reconnect drops the current channel and connects again with the current
// token. Used after a token refresh.
func (c *Client) Reconnect(ctx context.Context) error {
	c.Disconnect()
	return c.Connect(ctx)
}

// dial opens one channel bounded by the connect timeout. A handshake
// rejected with 401 publishes domain.TokenError.
func (c *Client) dial(ctx context.Context, token string) (Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	conn, err := c.dialer.Dial(dctx, c.opts.URL, token)
	if err == nil {
		return conn, nil
	}

	var hsErr *HandshakeError
	if errors.As(err, &hsErr) && hsErr.Status == http.StatusUnauthorized {
		c.offer(domain.TokenError{Message: "handshake rejected: unauthorized"})
		return nil, err
	}
	if ctx.Err() == nil && errors.Is(dctx.Err(), context.DeadlineExceeded) {
		return nil, domain.ErrConnectTimeout
	}
	return nil, err
}

// run reads frames until the channel drops, then reconnects. It exits when
// the generation changes or reconnection gives up.
func (c *Client) run(ctx context.Context, gen uint64, conn Conn) {
	for conn != nil {
		err := c.read(ctx, gen, conn)
		_ = conn.Close()

		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return
		}
		c.conn = nil
		c.state = StateReconnecting
		c.mu.Unlock()

		c.log.Warn("realtime", fmt.Sprintf("connection lost: %v", err))
		conn = c.reconnect(ctx, gen)
	}
}

func (c *Client) read(ctx context.Context, gen uint64, conn Conn) error {
	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		ev, err := Decode(frame)
		if err != nil {
			c.log.Warn("realtime", fmt.Sprintf("dropping frame: %v", err))
			continue
		}
		if u, ok := ev.(domain.UnknownEvent); ok {
			c.log.Debug("realtime", fmt.Sprintf("dropping unknown event %q", u.Tag))
			continue
		}
		if !c.publish(ctx, gen, ev) {
			return context.Canceled
		}
	}
}

// reconnect retries with exponential backoff and returns the new channel,
// or nil when attempts are exhausted or the client was disconnected.
func (c *Client) reconnect(ctx context.Context, gen uint64) Conn {
	delay := c.opts.InitialDelay
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		delay = nextDelay(delay, c.opts.MaxDelay)

		token := c.tokens.AccessToken()
		if token == "" {
			c.mu.Lock()
			if c.gen == gen {
				c.state = StateDisconnected
			}
			c.mu.Unlock()
			c.log.Info("realtime", "reconnect abandoned: signed out")
			return nil
		}

		c.log.Info("realtime", fmt.Sprintf("reconnect attempt %d/%d", attempt, c.opts.MaxAttempts))
		conn, err := c.dial(ctx, token)
		if err != nil {
			c.log.Warn("realtime", fmt.Sprintf("reconnect attempt %d failed: %v", attempt, err))
			continue
		}

		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		c.conn = conn
		c.state = StateConnected
		c.mu.Unlock()
		c.log.Info("realtime", "reconnected")
		return conn
	}

	c.mu.Lock()
	if c.gen == gen {
		c.state = StateGaveUp
	}
	c.mu.Unlock()
	c.log.Error("realtime", fmt.Sprintf("giving up after %d reconnect attempts", c.opts.MaxAttempts))
	return nil
}

// nextDelay doubles d, capped at limit.
func nextDelay(d, limit time.Duration) time.Duration {
	d *= 2
	if d > limit {
		return limit
	}
	return d
}

// publish delivers ev to every subscriber, blocking on full buffers.
// Events of a superseded generation are dropped. Returns false when ctx ends.
func (c *Client) publish(ctx context.Context, gen uint64, ev domain.Event) bool {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return false
	}
	subs := c.snapshot()
	c.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.events <- ev:
		case <-sub.done:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// offer delivers ev without blocking; full subscribers miss it.
func (c *Client) offer(ev domain.Event) {
	c.mu.Lock()
	subs := c.snapshot()
	c.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.events <- ev:
		case <-sub.done:
		default:
			c.log.Warn("realtime", fmt.Sprintf("subscriber full, dropped %s", ev.Type()))
		}
	}
}

func (c *Client) snapshot() []*subscriber {
	subs := make([]*subscriber, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	return subs
}
