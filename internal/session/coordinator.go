package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/runoshun/tracksync/internal/domain"
	"golang.org/x/sync/singleflight"
)

const refreshKey = "refresh"

// Disconnecter is the part of the realtime client a forced logout needs.
type Disconnecter interface {
	Disconnect()
}

// CoordinatorOptions tunes refresh behaviour.
type CoordinatorOptions struct {
	Skew    time.Duration // Refresh proactively this long before exp
	Timeout time.Duration // Bound on one refresh round trip
}

// Coordinator serializes token refreshes and owns the forced-logout signal.
// Fields are ordered to minimize memory padding.
type Coordinator struct {
	auth      domain.AuthAPI
	realtime  Disconnecter
	clock     domain.Clock
	log       domain.Logger
	store     *CredentialStore
	loggedOut chan struct{}
	group     singleflight.Group
	opts      CoordinatorOptions
	mu        sync.Mutex
	fired     bool
}

// NewCoordinator creates a Coordinator. realtime may be nil.
func NewCoordinator(auth domain.AuthAPI, store *CredentialStore, realtime Disconnecter, clock domain.Clock, log domain.Logger, opts CoordinatorOptions) *Coordinator {
	if opts.Timeout <= 0 {
		opts.Timeout = domain.DefaultRefreshTimeout
	}
	return &Coordinator{
		auth:      auth,
		store:     store,
		realtime:  realtime,
		clock:     clock,
		log:       log,
		opts:      opts,
		loggedOut: make(chan struct{}),
	}
}

// Refresh exchanges the refresh token for a new access token.
// Concurrent callers share a single round trip and its outcome.
// The shared call is detached from ctx; a caller whose ctx ends stops
// waiting and gets false while the others keep waiting.
func (c *Coordinator) Refresh(ctx context.Context) bool {
	ch := c.group.DoChan(refreshKey, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.Timeout)
		defer cancel()
		return nil, c.refresh(rctx)
	})

	select {
	case res := <-ch:
		return res.Err == nil
	case <-ctx.Done():
		return false
	}
}

func (c *Coordinator) refresh(ctx context.Context) error {
	rt := c.store.RefreshToken()
	if rt == "" {
		c.log.Warn("session", "refresh skipped: no refresh token")
		return domain.ErrNoRefreshToken
	}

	c.log.Debug("session", "refreshing access token")
	res, err := c.auth.RefreshToken(ctx, rt)
	if err != nil {
		c.log.Warn("session", fmt.Sprintf("refresh failed: %v", err))
		return err
	}
	if res == nil || res.AccessToken == "" {
		c.log.Warn("session", "refresh returned no access token")
		return errors.New("refresh returned no access token")
	}

	if err := c.store.UpdateTokens(res.AccessToken, res.RefreshToken, res.Profile); err != nil {
		c.log.Warn("session", fmt.Sprintf("refresh result dropped: %v", err))
		return err
	}
	c.log.Info("session", "access token refreshed")
	return nil
}

// ForceLogout ends the session locally: the realtime channel is closed,
// the credential is cleared and the logged-out signal fires. It does not
// contact the server. Repeated calls fire the signal once.
func (c *Coordinator) ForceLogout() {
	if c.realtime != nil {
		c.realtime.Disconnect()
	}
	if err := c.store.Clear(); err != nil {
		c.log.Error("session", err.Error())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fired {
		return
	}
	c.fired = true
	close(c.loggedOut)
	c.log.Warn("session", "forced logout")
}

// Arm installs a fresh logged-out signal after a successful login.
func (c *Coordinator) Arm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fired {
		c.loggedOut = make(chan struct{})
		c.fired = false
	}
}

// LoggedOut returns a channel closed when the current session is forced out.
func (c *Coordinator) LoggedOut() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedOut
}

// NeedsRefresh reports whether the access token expires within the skew and
// a refresh token is available to renew it.
func (c *Coordinator) NeedsRefresh() bool {
	cred := c.store.Get()
	if cred == nil || cred.RefreshToken == "" {
		return false
	}
	return cred.ExpiresWithin(c.clock.Now(), c.opts.Skew)
}
