package tui

import (
	"github.com/runoshun/tracksync/internal/domain"
	"github.com/runoshun/tracksync/internal/engine"
)

// Msg is the sealed interface for all watch view messages.
//
// go-sumtype:decl Msg
type Msg interface {
	sealed()
}

// MsgTick carries one timer tick.
type MsgTick struct {
	Tick engine.Tick
}

func (MsgTick) sealed() {}

// MsgTicksClosed is sent when the tick stream ends.
type MsgTicksClosed struct{}

func (MsgTicksClosed) sealed() {}

// MsgStopped is sent when a stop requested from the view completes.
type MsgStopped struct {
	Entry *domain.TimeEntry
	Err   error
}

func (MsgStopped) sealed() {}

// MsgSyncEnded is sent when event routing stops.
type MsgSyncEnded struct {
	Err error
}

func (MsgSyncEnded) sealed() {}
