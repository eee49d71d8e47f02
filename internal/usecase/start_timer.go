package usecase

import (
	"context"

	"github.com/runoshun/tracksync/internal/domain"
)

// StartTimerInput contains the parameters for starting a timer.
type StartTimerInput struct {
	ProjectID string
	Switch    bool // Use the atomic switch instead of stop-then-start
}

// StartTimerOutput contains the result of starting a timer.
type StartTimerOutput struct {
	Started *domain.TimeEntry
	Stopped *domain.TimeEntry // Entry closed by a switch, if any
}

// StartTimer is the use case for starting or switching the timer.
type StartTimer struct {
	timer    Timer
	projects *ListProjects
}

// NewStartTimer creates a new StartTimer use case.
func NewStartTimer(timer Timer, projects *ListProjects) *StartTimer {
	return &StartTimer{timer: timer, projects: projects}
}

// Execute resolves the project and starts tracking it.
func (uc *StartTimer) Execute(ctx context.Context, in StartTimerInput) (*StartTimerOutput, error) {
	project, err := uc.projects.FindProject(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}

	if in.Switch {
		closed, started, err := uc.timer.Switch(ctx, project)
		if err != nil {
			return nil, err
		}
		return &StartTimerOutput{Started: started, Stopped: closed}, nil
	}

	started, err := uc.timer.Start(ctx, project)
	if err != nil {
		return nil, err
	}
	return &StartTimerOutput{Started: started}, nil
}
