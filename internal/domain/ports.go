package domain

import (
	"context"
	"time"
)

// KeyValueStore is the opaque local persistence port.
type KeyValueStore interface {
	// Get returns the value stored under key. Returns nil if not found.
	Get(key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// StoreInitializer initializes the data store.
type StoreInitializer interface {
	// Initialize creates the store if it doesn't exist.
	Initialize() error
}

// Store keys shared by the components.
const (
	KeyCredential    = "session/credential"
	KeyLoginSession  = "session/login-token"
	KeyRunningEntry  = "timer/running"
	KeyClosedEntries = "timer/entries"
	KeyProjectTotals = "timer/totals"
	KeyAttendance    = "timer/attendance"
	KeyProjects      = "projects/cache"
)

// SessionStore persists the signed-in credential and the pending OTP login.
type SessionStore interface {
	// Get returns a copy of the credential, or nil when signed out.
	Get() *Credential

	// Save replaces the credential.
	Save(cred *Credential) error

	// Clear removes the credential.
	Clear() error

	// RefreshToken returns the current refresh token, or "".
	RefreshToken() string

	// SaveLoginSession stores the token of an OTP login in progress.
	SaveLoginSession(token string) error

	// LoginSession returns the token of the OTP login in progress, or "".
	LoginSession() (string, error)

	// ClearLoginSession forgets the OTP login in progress.
	ClearLoginSession() error
}

// AuthAPI is the unauthenticated part of the server API.
type AuthAPI interface {
	// Login starts an OTP login and returns the login session token.
	Login(ctx context.Context, email string) (string, error)

	// VerifyLoginOTP exchanges the session token and OTP for a credential.
	VerifyLoginOTP(ctx context.Context, sessionToken, otp string) (*Credential, error)

	// RefreshToken exchanges a refresh token for new tokens.
	RefreshToken(ctx context.Context, refreshToken string) (*RefreshResult, error)

	// Logout invalidates the refresh token server-side.
	Logout(ctx context.Context, refreshToken string) error
}

// RefreshResult is the outcome of a successful token refresh.
// RefreshToken and Profile are optional.
type RefreshResult struct {
	Profile      *Profile
	AccessToken  string
	RefreshToken string
}

// TimeEntryAPI covers the project and time-entry endpoints.
type TimeEntryAPI interface {
	// ListProjects returns the projects visible to the user.
	ListProjects(ctx context.Context) ([]Project, error)

	// OpenEntry returns the server's running entry, or nil.
	OpenEntry(ctx context.Context) (*RemoteEntry, error)

	// StartEntry starts a server entry for the project and returns its id.
	StartEntry(ctx context.Context, projectID string) (string, error)

	// EndEntry ends the server entry. An empty id ends the open entry.
	EndEntry(ctx context.Context, entryID string) error

	// MyPending returns the entries without submitted tasks.
	MyPending(ctx context.Context) ([]RemoteEntry, error)

	// MarkSubmitted flags one raw entry as task-submitted.
	MarkSubmitted(ctx context.Context, entryID string) error
}

// ReportAPI covers the daily report endpoints.
type ReportAPI interface {
	// MyTasks returns the tasks reported for a project on a day.
	MyTasks(ctx context.Context, projectID, day string) ([]ReportTask, error)

	// CreateReport creates tasks, reusing ReportID when set.
	CreateReport(ctx context.Context, in CreateReportInput) (*Report, error)
}

// CreateReportInput is the payload of a report creation.
type CreateReportInput struct {
	ReportID    string
	ReportDate  string
	Orientation string
	Tasks       []ReportTask
}

// Report is a server-side day report.
type Report struct {
	ID    string
	Date  string
	Tasks []ReportTask
}

// Logger is the logging port used by every component.
type Logger interface {
	Debug(category, msg string)
	Info(category, msg string)
	Warn(category, msg string)
	Error(category, msg string)
}

// Clock provides time operations for testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// RealClock implements Clock using the system clock.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}
