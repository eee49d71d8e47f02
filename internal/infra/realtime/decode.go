package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/runoshun/tracksync/internal/domain"
)

// tokenErrorPatterns are matched case-insensitively against error payloads.
var tokenErrorPatterns = []string{
	"invalid or expired token",
	"jwt expired",
	"jwt malformed",
	"unauthorized",
	"token expired",
}

// IsTokenError reports whether msg describes a rejected access token.
func IsTokenError(msg string) bool {
	lower := strings.ToLower(msg)
	for _, p := range tokenErrorPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

var errMalformed = errors.New("malformed frame")

type envelope struct {
	Event domain.EventType `json:"event"`
	Data  json.RawMessage  `json:"data"`
}

// ref is an id sent either as a string or as a populated document.
type ref struct {
	ID   string
	Name string
}

func (r *ref) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &r.ID)
	}
	var doc struct {
		ID   string `json:"_id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	r.ID, r.Name = doc.ID, doc.Name
	return nil
}

// entryData is the payload of the time entry events.
// Fields are ordered to minimize memory padding.
type entryData struct {
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
	Project     ref        `json:"projectId"`
	ID          string     `json:"_id"`
	EntryID     string     `json:"entryId"`
	ProjectName string     `json:"projectName"`
	Duration    float64    `json:"duration"`
}

type attendanceData struct {
	At       *time.Time `json:"at"`
	CheckIn  *time.Time `json:"checkInTime"`
	CheckOut *time.Time `json:"checkOutTime"`
}

func (a attendanceData) time() time.Time {
	for _, t := range []*time.Time{a.At, a.CheckIn, a.CheckOut} {
		if t != nil {
			return *t
		}
	}
	return time.Time{}
}

type taskData struct {
	Report struct {
		ID         string `json:"_id"`
		ReportDate string `json:"reportDate"`
	} `json:"report"`
	Project     ref      `json:"projectId"`
	ID          string   `json:"_id"`
	TaskID      string   `json:"taskId"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ReportID    string   `json:"reportId"`
	ReportDate  string   `json:"reportDate"`
	Attachments []string `json:"attachments"`
}

func (t taskData) toDomain() domain.ReportTask {
	return domain.ReportTask{
		ID:              firstNonEmpty(t.ID, t.TaskID),
		ProjectID:       t.Project.ID,
		TaskName:        t.Title,
		Description:     t.Description,
		ReportID:        firstNonEmpty(t.Report.ID, t.ReportID),
		ReportDate:      dayOf(firstNonEmpty(t.Report.ReportDate, t.ReportDate)),
		AttachmentPaths: t.Attachments,
	}
}

// Decode turns one inbound frame into a domain event.
// Any error-shaped payload naming a token problem becomes domain.TokenError,
// whatever its tag. Unknown tags yield domain.UnknownEvent.
func Decode(frame []byte) (domain.Event, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("%w: missing event tag", errMalformed)
	}

	msg := errorMessage(env.Data)
	if msg != "" && IsTokenError(msg) {
		return domain.TokenError{Message: msg}, nil
	}

	switch env.Event {
	case domain.EventTimeEntryStarted:
		var d entryData
		if err := decodeData(env.Data, "timeEntry", &d); err != nil {
			return nil, err
		}
		return domain.TimeEntryStarted{
			EntryID:     firstNonEmpty(d.ID, d.EntryID),
			ProjectID:   d.Project.ID,
			ProjectName: firstNonEmpty(d.ProjectName, d.Project.Name),
			StartTime:   d.StartTime,
		}, nil

	case domain.EventTimeEntryEnded:
		var d entryData
		if err := decodeData(env.Data, "timeEntry", &d); err != nil {
			return nil, err
		}
		ev := domain.TimeEntryEnded{
			EntryID:     firstNonEmpty(d.ID, d.EntryID),
			ProjectID:   d.Project.ID,
			ProjectName: firstNonEmpty(d.ProjectName, d.Project.Name),
			Duration:    time.Duration(d.Duration * float64(time.Second)),
		}
		if d.EndTime != nil {
			ev.EndTime = *d.EndTime
			if ev.Duration == 0 && !d.StartTime.IsZero() && d.EndTime.After(d.StartTime) {
				ev.Duration = d.EndTime.Sub(d.StartTime)
			}
		}
		return ev, nil

	case domain.EventAttendanceCheckedIn:
		var d attendanceData
		if err := decodeData(env.Data, "attendance", &d); err != nil {
			return nil, err
		}
		return domain.AttendanceCheckedIn{At: d.time()}, nil

	case domain.EventAttendanceCheckedOut:
		var d attendanceData
		if err := decodeData(env.Data, "attendance", &d); err != nil {
			return nil, err
		}
		return domain.AttendanceCheckedOut{At: d.time()}, nil

	case domain.EventTaskCreated:
		var d taskData
		if err := decodeData(env.Data, "task", &d); err != nil {
			return nil, err
		}
		return domain.TaskCreated{Task: d.toDomain()}, nil

	case domain.EventTaskUpdated:
		var d taskData
		if err := decodeData(env.Data, "task", &d); err != nil {
			return nil, err
		}
		return domain.TaskUpdated{Task: d.toDomain()}, nil

	case domain.EventTaskDeleted:
		var d taskData
		if err := decodeData(env.Data, "task", &d); err != nil {
			return nil, err
		}
		t := d.toDomain()
		if t.ID == "" {
			return nil, fmt.Errorf("%w: task:deleted without id", errMalformed)
		}
		return domain.TaskDeleted{TaskID: t.ID, ProjectID: t.ProjectID, ReportDate: t.ReportDate}, nil

	case domain.EventError:
		return nil, fmt.Errorf("server error: %s", msg)

	default:
		return domain.UnknownEvent{Tag: env.Event}, nil
	}
}

// decodeData decodes data into v, descending into data[key] when present.
func decodeData(data json.RawMessage, key string, v any) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return fmt.Errorf("%w: missing data", errMalformed)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if nested, ok := obj[key]; ok && len(bytes.TrimSpace(nested)) > 0 && nested[0] == '{' {
		data = nested
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	return nil
}

// errorMessage extracts an error text from a string payload or from the
// message / error fields of an object payload.
func errorMessage(data json.RawMessage) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ""
	}
	if data[0] == '"' {
		var s string
		_ = json.Unmarshal(data, &s)
		return s
	}
	var obj struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if json.Unmarshal(data, &obj) != nil {
		return ""
	}
	if obj.Message != "" {
		return obj.Message
	}
	if len(obj.Error) > 0 {
		return errorMessage(obj.Error)
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// dayOf reduces an RFC 3339 timestamp to its calendar day.
func dayOf(s string) string {
	if len(s) <= len(domain.DayLayout) {
		return s
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(domain.DayLayout)
	}
	return s[:len(domain.DayLayout)]
}
