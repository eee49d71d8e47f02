package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/runoshun/tracksync/internal/domain"
)

// Prepare loads the credential and the local timer state for a one-shot
// command. The server is not contacted.
func (c *Container) Prepare() error {
	if _, err := c.Credentials.Load(); err != nil {
		return err
	}
	return c.Timer.Load()
}

// Resume restores the timer and, when signed in, opens the realtime channel.
// A channel that cannot be opened is logged; the timer still works offline.
func (c *Container) Resume(ctx context.Context) error {
	if _, err := c.Credentials.Load(); err != nil {
		return err
	}
	if !c.Credentials.IsLoggedIn() {
		return c.Timer.Load()
	}
	if err := c.Timer.Restore(ctx); err != nil {
		return err
	}
	if err := c.Realtime.Connect(ctx); err != nil {
		c.Logger.Warn("realtime", fmt.Sprintf("starting offline: %v", err))
	}
	return nil
}

// StartSync subscribes to the realtime channel and, in the background,
// routes its events into the timer and the pending workflow and reacts to
// token errors. Routing stops when ctx ends or the session is forced out;
// the returned channel then yields nil or domain.ErrSessionExpired.
func (c *Container) StartSync(ctx context.Context) <-chan error {
	events, unsubscribe := c.Realtime.Subscribe()
	loggedOut := c.Coordinator.LoggedOut()
	done := make(chan error, 1)
	go func() {
		defer unsubscribe()
		done <- c.route(ctx, events, loggedOut)
	}()
	return done
}

func (c *Container) route(ctx context.Context, events <-chan domain.Event, loggedOut <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-loggedOut:
			c.Timer.HandleLogout()
			return domain.ErrSessionExpired
		case ev := <-events:
			c.dispatch(ctx, ev)
		}
	}
}

func (c *Container) dispatch(ctx context.Context, ev domain.Event) {
	if te, ok := ev.(domain.TokenError); ok {
		c.Logger.Warn("realtime", fmt.Sprintf("token rejected: %s", te.Message))
		if !c.Coordinator.Refresh(ctx) {
			c.Coordinator.ForceLogout()
			return
		}
		if err := c.Realtime.Reconnect(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.Logger.Warn("realtime", fmt.Sprintf("reconnect after refresh: %v", err))
		}
		return
	}
	c.Timer.Apply(ev)
}
