package domain

import "time"

// EventType is the tag of a realtime channel message.
type EventType string

// Realtime event tags.
const (
	EventTimeEntryStarted     EventType = "timeEntry:started"
	EventTimeEntryEnded       EventType = "timeEntry:ended"
	EventAttendanceCheckedIn  EventType = "attendance:checkedIn"
	EventAttendanceCheckedOut EventType = "attendance:checkedOut"
	EventTaskCreated          EventType = "task:created"
	EventTaskUpdated          EventType = "task:updated"
	EventTaskDeleted          EventType = "task:deleted"
	EventError                EventType = "error"
)

// Event is a domain event pushed by the server.
// All event types implement this sealed interface.
//
//sumtype:decl
type Event interface {
	Type() EventType
	sealed()
}

// TimeEntryStarted is published when a time entry starts on any device.
type TimeEntryStarted struct {
	StartTime   time.Time
	EntryID     string
	ProjectID   string
	ProjectName string
}

func (TimeEntryStarted) Type() EventType { return EventTimeEntryStarted }
func (TimeEntryStarted) sealed()         {}

// TimeEntryEnded is published when a time entry ends on any device.
// Fields are ordered to minimize memory padding.
type TimeEntryEnded struct {
	EndTime     time.Time
	EntryID     string
	ProjectID   string
	ProjectName string
	Duration    time.Duration
}

func (TimeEntryEnded) Type() EventType { return EventTimeEntryEnded }
func (TimeEntryEnded) sealed()         {}

// AttendanceCheckedIn is published on check-in.
type AttendanceCheckedIn struct {
	At time.Time
}

func (AttendanceCheckedIn) Type() EventType { return EventAttendanceCheckedIn }
func (AttendanceCheckedIn) sealed()         {}

// AttendanceCheckedOut is published on check-out.
type AttendanceCheckedOut struct {
	At time.Time
}

func (AttendanceCheckedOut) Type() EventType { return EventAttendanceCheckedOut }
func (AttendanceCheckedOut) sealed()         {}

// TaskCreated is published when a report task is created.
type TaskCreated struct {
	Task ReportTask
}

func (TaskCreated) Type() EventType { return EventTaskCreated }
func (TaskCreated) sealed()         {}

// TaskUpdated is published when a report task changes.
type TaskUpdated struct {
	Task ReportTask
}

func (TaskUpdated) Type() EventType { return EventTaskUpdated }
func (TaskUpdated) sealed()         {}

// TaskDeleted is published when a report task is removed.
type TaskDeleted struct {
	TaskID     string
	ProjectID  string
	ReportDate string
}

func (TaskDeleted) Type() EventType { return EventTaskDeleted }
func (TaskDeleted) sealed()         {}

// TokenError signals that the channel rejected the current access token.
type TokenError struct {
	Message string
}

func (TokenError) Type() EventType { return EventError }
func (TokenError) sealed()         {}

// UnknownEvent stands for a tag this client does not handle.
type UnknownEvent struct {
	Tag EventType
}

func (e UnknownEvent) Type() EventType { return e.Tag }
func (UnknownEvent) sealed()           {}
