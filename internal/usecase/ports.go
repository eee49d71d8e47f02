// Package usecase contains the application use cases.
package usecase

import (
	"context"

	"github.com/runoshun/tracksync/internal/domain"
)

// Timer is the part of the engine timer the use cases drive.
type Timer interface {
	Start(ctx context.Context, project domain.Project) (*domain.TimeEntry, error)
	Switch(ctx context.Context, project domain.Project) (closed, started *domain.TimeEntry, err error)
	Stop(ctx context.Context) (*domain.TimeEntry, error)
	ResetAllProjectTimes() error
	HandleLogout()
}

// PendingWorkflow is the part of the pending workflow the use cases drive.
type PendingWorkflow interface {
	MarkAllSubmitted(ctx context.Context) (int, error)
}

// SessionArmer re-arms the forced-logout signal after a login.
type SessionArmer interface {
	Arm()
}

// Disconnecter closes the realtime channel.
type Disconnecter interface {
	Disconnect()
}
