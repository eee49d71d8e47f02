package realtime

import (
	"testing"
	"time"

	"github.com/runoshun/tracksync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)

	tests := []struct {
		want  domain.Event
		name  string
		frame string
	}{
		{
			name:  "time entry started flat",
			frame: `{"event":"timeEntry:started","data":{"_id":"e1","projectId":"p1","projectName":"Alpha","startTime":"2026-03-02T09:00:00Z"}}`,
			want:  domain.TimeEntryStarted{EntryID: "e1", ProjectID: "p1", ProjectName: "Alpha", StartTime: start},
		},
		{
			name:  "time entry started nested with populated project",
			frame: `{"event":"timeEntry:started","data":{"timeEntry":{"_id":"e1","projectId":{"_id":"p1","name":"Alpha"},"startTime":"2026-03-02T09:00:00Z"}}}`,
			want:  domain.TimeEntryStarted{EntryID: "e1", ProjectID: "p1", ProjectName: "Alpha", StartTime: start},
		},
		{
			name:  "time entry ended with duration seconds",
			frame: `{"event":"timeEntry:ended","data":{"entryId":"e1","projectId":"p1","endTime":"2026-03-02T10:30:00Z","duration":5400}}`,
			want:  domain.TimeEntryEnded{EntryID: "e1", ProjectID: "p1", EndTime: end, Duration: 90 * time.Minute},
		},
		{
			name:  "time entry ended derives duration",
			frame: `{"event":"timeEntry:ended","data":{"_id":"e1","projectId":"p1","startTime":"2026-03-02T09:00:00Z","endTime":"2026-03-02T10:30:00Z"}}`,
			want:  domain.TimeEntryEnded{EntryID: "e1", ProjectID: "p1", EndTime: end, Duration: 90 * time.Minute},
		},
		{
			name:  "checked in",
			frame: `{"event":"attendance:checkedIn","data":{"checkInTime":"2026-03-02T09:00:00Z"}}`,
			want:  domain.AttendanceCheckedIn{At: start},
		},
		{
			name:  "checked out nested",
			frame: `{"event":"attendance:checkedOut","data":{"attendance":{"checkOutTime":"2026-03-02T10:30:00Z"}}}`,
			want:  domain.AttendanceCheckedOut{At: end},
		},
		{
			name:  "task created",
			frame: `{"event":"task:created","data":{"task":{"_id":"t1","projectId":"p1","title":"Docs","report":{"_id":"r1","reportDate":"2026-03-02T00:00:00.000Z"}}}}`,
			want: domain.TaskCreated{Task: domain.ReportTask{
				ID: "t1", ProjectID: "p1", TaskName: "Docs", ReportID: "r1", ReportDate: "2026-03-02",
			}},
		},
		{
			name:  "task updated",
			frame: `{"event":"task:updated","data":{"_id":"t1","projectId":"p1","title":"Docs v2","reportId":"r1","reportDate":"2026-03-02"}}`,
			want: domain.TaskUpdated{Task: domain.ReportTask{
				ID: "t1", ProjectID: "p1", TaskName: "Docs v2", ReportID: "r1", ReportDate: "2026-03-02",
			}},
		},
		{
			name:  "task deleted",
			frame: `{"event":"task:deleted","data":{"taskId":"t1","projectId":"p1","reportDate":"2026-03-02"}}`,
			want:  domain.TaskDeleted{TaskID: "t1", ProjectID: "p1", ReportDate: "2026-03-02"},
		},
		{
			name:  "unknown tag",
			frame: `{"event":"chat:message","data":{"text":"hi"}}`,
			want:  domain.UnknownEvent{Tag: "chat:message"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_TokenErrors(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  string
	}{
		{"error tag with message", `{"event":"error","data":{"message":"Invalid or expired token"}}`, "Invalid or expired token"},
		{"error tag with string data", `{"event":"error","data":"jwt malformed"}`, "jwt malformed"},
		{"nested error object", `{"event":"error","data":{"error":{"message":"TOKEN EXPIRED"}}}`, "TOKEN EXPIRED"},
		{"any tag carrying a token error", `{"event":"task:created","data":{"error":"Unauthorized"}}`, "Unauthorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, domain.TokenError{Message: tt.want}, got)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"not json", `{{`},
		{"missing tag", `{"data":{}}`},
		{"missing data", `{"event":"timeEntry:started"}`},
		{"wrong data type", `{"event":"timeEntry:started","data":{"startTime":42}}`},
		{"deleted without id", `{"event":"task:deleted","data":{"projectId":"p1"}}`},
		{"other server error", `{"event":"error","data":{"message":"rate limited"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.frame))
			assert.Error(t, err)
		})
	}
}

func TestIsTokenError(t *testing.T) {
	assert.True(t, IsTokenError("jwt expired"))
	assert.True(t, IsTokenError("Request UNAUTHORIZED by gateway"))
	assert.False(t, IsTokenError("forbidden"))
	assert.False(t, IsTokenError(""))
}
