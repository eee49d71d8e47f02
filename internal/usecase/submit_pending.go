package usecase

import (
	"context"
	"fmt"

	"github.com/runoshun/tracksync/internal/domain"
)

// SubmitPendingInput contains the parameters for submitting pending entries.
type SubmitPendingInput struct{}

// SubmitPendingOutput contains the result of submitting pending entries.
type SubmitPendingOutput struct {
	Submitted int // Entries acknowledged by this call
}

// SubmitPending is the use case for the final pending-task step.
type SubmitPending struct {
	pending PendingWorkflow
	timer   Timer
	log     domain.Logger
}

// NewSubmitPending creates a new SubmitPending use case.
func NewSubmitPending(pending PendingWorkflow, timer Timer, log domain.Logger) *SubmitPending {
	return &SubmitPending{pending: pending, timer: timer, log: log}
}

// Execute marks every pending entry submitted and, once all are
// acknowledged, resets the local project times.
func (uc *SubmitPending) Execute(ctx context.Context, _ SubmitPendingInput) (*SubmitPendingOutput, error) {
	n, err := uc.pending.MarkAllSubmitted(ctx)
	if err != nil {
		return &SubmitPendingOutput{Submitted: n}, err
	}
	if err := uc.timer.ResetAllProjectTimes(); err != nil {
		uc.log.Warn("timer", fmt.Sprintf("reset after submit: %v", err))
	}
	return &SubmitPendingOutput{Submitted: n}, nil
}
