package domain

// PendingState represents the lifecycle of the pending-task workflow.
type PendingState string

const (
	PendingInitial   PendingState = "initial"   // Nothing fetched yet
	PendingLoading   PendingState = "loading"   // Fetch in flight
	PendingLoaded    PendingState = "loaded"    // Groups available
	PendingError     PendingState = "error"     // Last fetch failed
	PendingCompleted PendingState = "completed" // All entries marked submitted
	PendingSkipped   PendingState = "skipped"   // Dismissed without server confirmation
)

// pendingTransitions defines the allowed workflow transitions.
// Flow: initial → loading → loaded → completed
//
//	  ↑   ↓       ↓
//	error ┴──→ skipped
var pendingTransitions = map[PendingState][]PendingState{
	PendingInitial:   {PendingLoading},
	PendingLoading:   {PendingLoaded, PendingError},
	PendingLoaded:    {PendingLoading, PendingCompleted, PendingSkipped},
	PendingError:     {PendingLoading, PendingSkipped},
	PendingCompleted: {},
	PendingSkipped:   {},
}

// CanTransitionTo returns true if the state can transition to target.
func (s PendingState) CanTransitionTo(target PendingState) bool {
	for _, t := range pendingTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true for completed and skipped.
func (s PendingState) IsTerminal() bool {
	return s == PendingCompleted || s == PendingSkipped
}

// Display returns a human-readable representation of the state.
func (s PendingState) Display() string {
	switch s {
	case PendingInitial:
		return "Not loaded"
	case PendingLoading:
		return "Loading"
	case PendingLoaded:
		return "Loaded"
	case PendingError:
		return "Error"
	case PendingCompleted:
		return "Completed"
	case PendingSkipped:
		return "Skipped"
	default:
		return string(s)
	}
}
