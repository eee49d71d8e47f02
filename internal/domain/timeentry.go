package domain

import (
	"fmt"
	"strings"
	"time"
)

// DayLayout is the calendar-day format used for grouping and report dates.
const DayLayout = "2006-01-02"

// Project is a trackable project.
type Project struct {
	ID   string `json:"_id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// TimeEntry is one tracked interval of work.
// Fields are ordered to minimize memory padding.
type TimeEntry struct {
	StartTime     time.Time      `json:"startTime"`
	EndTime       *time.Time     `json:"endTime,omitempty"`
	Duration      *time.Duration `json:"duration,omitempty"`
	ID            string         `json:"id"`
	RemoteID      string         `json:"remoteId,omitempty"`
	ProjectID     string         `json:"projectId"`
	ProjectName   string         `json:"projectName"`
	IsRunning     bool           `json:"isRunning"`
	TaskSubmitted bool           `json:"taskSubmitted"`
}

// Close ends a running entry at end. Closing an already closed entry is a no-op.
func (e *TimeEntry) Close(end time.Time) {
	if !e.IsRunning {
		return
	}
	if end.Before(e.StartTime) {
		end = e.StartTime
	}
	d := end.Sub(e.StartTime)
	e.EndTime = &end
	e.Duration = &d
	e.IsRunning = false
}

// Elapsed returns the tracked duration up to now.
func (e *TimeEntry) Elapsed(now time.Time) time.Duration {
	if e.Duration != nil {
		return *e.Duration
	}
	if now.Before(e.StartTime) {
		return 0
	}
	return now.Sub(e.StartTime)
}

// Day returns the calendar day of the entry start in loc.
func (e *TimeEntry) Day(loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return e.StartTime.In(loc).Format(DayLayout)
}

// ProjectTotal is the cached tracked time of one project.
type ProjectTotal struct {
	ProjectID   string        `json:"projectId" yaml:"project_id"`
	ProjectName string        `json:"projectName" yaml:"project_name"`
	Total       time.Duration `json:"total" yaml:"total"`
}

// Attendance is the last known check-in state.
type Attendance struct {
	At        time.Time `json:"at" yaml:"at"`
	CheckedIn bool      `json:"checkedIn" yaml:"checked_in"`
}

// GroupKey identifies a pending group: one project on one calendar day.
type GroupKey struct {
	ProjectID string
	Day       string
}

// String renders the key as "<project>@<day>".
func (k GroupKey) String() string {
	return k.ProjectID + "@" + k.Day
}

// ParseGroupKey parses "<project>@<day>".
func ParseGroupKey(s string) (GroupKey, error) {
	i := strings.LastIndex(s, "@")
	if i <= 0 || i == len(s)-1 {
		return GroupKey{}, fmt.Errorf("%w: %q", ErrInvalidGroupKey, s)
	}
	day := s[i+1:]
	if _, err := time.Parse(DayLayout, day); err != nil {
		return GroupKey{}, fmt.Errorf("%w: %q", ErrInvalidGroupKey, s)
	}
	return GroupKey{ProjectID: s[:i], Day: day}, nil
}

// PendingTimeEntry merges the unsubmitted entries of one project and day.
// Fields are ordered to minimize memory padding.
type PendingTimeEntry struct {
	Key              GroupKey
	ProjectName      string
	AllEntryIDs      []string
	Tasks            []ReportTask
	TotalDuration    time.Duration
	LocallyCompleted bool
}

// HasTask reports whether the group has at least one task.
func (p *PendingTimeEntry) HasTask() bool {
	return p.LocallyCompleted || len(p.Tasks) > 0
}

// AddEntryID appends id unless already present.
func (p *PendingTimeEntry) AddEntryID(id string) {
	for _, existing := range p.AllEntryIDs {
		if existing == id {
			return
		}
	}
	p.AllEntryIDs = append(p.AllEntryIDs, id)
}

// ReportTask is one task line of a day report.
type ReportTask struct {
	ID              string   `json:"_id"`
	ProjectID       string   `json:"projectId"`
	TaskName        string   `json:"title"`
	Description     string   `json:"description"`
	ReportID        string   `json:"reportId,omitempty"`
	ReportDate      string   `json:"reportDate,omitempty"`
	AttachmentPaths []string `json:"attachmentPaths,omitempty"`
}

// RemoteEntry is a time entry as returned by the pending endpoint.
// Fields are ordered to minimize memory padding.
type RemoteEntry struct {
	StartTime     time.Time
	ID            string
	ProjectID     string
	ProjectName   string
	EntryIDs      []string
	Duration      time.Duration
	TaskSubmitted bool
}

// IDs returns the raw entry ids the remote entry stands for.
func (r RemoteEntry) IDs() []string {
	if len(r.EntryIDs) > 0 {
		return r.EntryIDs
	}
	if r.ID == "" {
		return nil
	}
	return []string{r.ID}
}
