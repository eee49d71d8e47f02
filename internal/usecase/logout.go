package usecase

import (
	"context"
	"fmt"

	"github.com/runoshun/tracksync/internal/domain"
)

// LogoutInput contains the parameters for logging out.
type LogoutInput struct{}

// LogoutOutput contains the result of logging out.
type LogoutOutput struct {
	Stopped        *domain.TimeEntry // Timer stopped by the logout, if any
	ServerNotified bool              // Whether the server accepted the logout
}

// Logout is the use case for an explicit logout.
type Logout struct {
	auth     domain.AuthAPI
	store    domain.SessionStore
	timer    Timer
	realtime Disconnecter
	log      domain.Logger
}

// NewLogout creates a new Logout use case. realtime may be nil.
func NewLogout(auth domain.AuthAPI, store domain.SessionStore, timer Timer, realtime Disconnecter, log domain.Logger) *Logout {
	return &Logout{auth: auth, store: store, timer: timer, realtime: realtime, log: log}
}

// Execute stops the timer and tells the server, both best-effort, then
// clears the local session regardless of what the server said.
func (uc *Logout) Execute(ctx context.Context, _ LogoutInput) (*LogoutOutput, error) {
	cred := uc.store.Get()
	if !cred.IsLoggedIn() {
		return nil, domain.ErrNotLoggedIn
	}
	out := &LogoutOutput{}

	stopped, err := uc.timer.Stop(ctx)
	if err != nil {
		uc.log.Warn("session", fmt.Sprintf("stop timer on logout: %v", err))
	}
	out.Stopped = stopped

	if cred.RefreshToken != "" {
		if err := uc.auth.Logout(ctx, cred.RefreshToken); err != nil {
			uc.log.Warn("session", fmt.Sprintf("server logout failed: %v", err))
		} else {
			out.ServerNotified = true
		}
	}

	if uc.realtime != nil {
		uc.realtime.Disconnect()
	}
	if err := uc.store.Clear(); err != nil {
		return nil, err
	}
	uc.timer.HandleLogout()
	uc.log.Info("session", "logged out")
	return out, nil
}
