package usecase

import (
	"context"

	"github.com/runoshun/tracksync/internal/domain"
)

// StopTimerInput contains the parameters for stopping the timer.
type StopTimerInput struct{}

// StopTimerOutput contains the result of stopping the timer.
type StopTimerOutput struct {
	Stopped *domain.TimeEntry // nil when nothing was running
}

// StopTimer is the use case for stopping the timer.
type StopTimer struct {
	timer Timer
}

// NewStopTimer creates a new StopTimer use case.
func NewStopTimer(timer Timer) *StopTimer {
	return &StopTimer{timer: timer}
}

// Execute stops the running timer, if any.
func (uc *StopTimer) Execute(ctx context.Context, _ StopTimerInput) (*StopTimerOutput, error) {
	stopped, err := uc.timer.Stop(ctx)
	if err != nil {
		return nil, err
	}
	return &StopTimerOutput{Stopped: stopped}, nil
}
