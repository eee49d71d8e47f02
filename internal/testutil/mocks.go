// Package testutil provides shared test utilities and mock implementations.
package testutil

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/runoshun/tracksync/internal/domain"
)

// MockClock is a test double for domain.Clock.
type MockClock struct {
	NowTime time.Time
	mu      sync.Mutex
}

// NewMockClock creates a clock frozen at now.
func NewMockClock(now time.Time) *MockClock {
	return &MockClock{NowTime: now}
}

// Now returns the configured time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.NowTime
}

// Advance moves the clock forward by d.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NowTime = m.NowTime.Add(d)
}

// Set moves the clock to now.
func (m *MockClock) Set(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NowTime = now
}

// MemoryStore is an in-memory domain.KeyValueStore.
// Fields are ordered to minimize memory padding.
type MemoryStore struct {
	Values    map[string][]byte
	GetErr    error
	SetErr    error
	DeleteErr error
	SetCalls  int
	mu        sync.Mutex
}

// Ensure MemoryStore implements domain.KeyValueStore.
var _ domain.KeyValueStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{Values: make(map[string][]byte)}
}

// Get returns a copy of the stored value or nil.
func (m *MemoryStore) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	v, ok := m.Values[key]
	if !ok {
		return nil, nil
	}
	return slices.Clone(v), nil
}

// Set stores a copy of value.
func (m *MemoryStore) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetCalls++
	if m.SetErr != nil {
		return m.SetErr
	}
	m.Values[key] = slices.Clone(value)
	return nil
}

// Delete removes key.
func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.Values, key)
	return nil
}

// Has reports whether key is present.
func (m *MemoryStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Values[key]
	return ok
}

// Snapshot returns a copy of all values.
func (m *MemoryStore) Snapshot() map[string][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.Values)
}

// MockLogger records log lines.
type MockLogger struct {
	Lines []string
	mu    sync.Mutex
}

// Ensure MockLogger implements domain.Logger.
var _ domain.Logger = (*MockLogger)(nil)

func (m *MockLogger) record(level, category, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lines = append(m.Lines, fmt.Sprintf("%s [%s] %s", level, category, msg))
}

// Debug records a debug line.
func (m *MockLogger) Debug(category, msg string) { m.record("DEBUG", category, msg) }

// Info records an info line.
func (m *MockLogger) Info(category, msg string) { m.record("INFO", category, msg) }

// Warn records a warning line.
func (m *MockLogger) Warn(category, msg string) { m.record("WARN", category, msg) }

// Error records an error line.
func (m *MockLogger) Error(category, msg string) { m.record("ERROR", category, msg) }

// Contains reports whether any recorded line contains substr.
func (m *MockLogger) Contains(substr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.Lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

// MockAuthAPI is a test double for domain.AuthAPI.
// Fields are ordered to minimize memory padding.
type MockAuthAPI struct {
	// RefreshGate, when set, blocks RefreshToken until it is closed.
	RefreshGate   chan struct{}
	Credential    *domain.Credential
	RefreshResult *domain.RefreshResult
	LoginErr      error
	VerifyErr     error
	RefreshErr    error
	LogoutErr     error
	LoginToken    string
	LastEmail     string
	LastOTP       string
	LastSession   string
	LastRefresh   string
	RefreshCalls  atomic.Int32
	LogoutCalls   atomic.Int32
	mu            sync.Mutex
}

// Ensure MockAuthAPI implements domain.AuthAPI.
var _ domain.AuthAPI = (*MockAuthAPI)(nil)

// Login records the email and returns LoginToken.
func (m *MockAuthAPI) Login(_ context.Context, email string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastEmail = email
	if m.LoginErr != nil {
		return "", m.LoginErr
	}
	return m.LoginToken, nil
}

// VerifyLoginOTP records the inputs and returns Credential.
func (m *MockAuthAPI) VerifyLoginOTP(_ context.Context, sessionToken, otp string) (*domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastSession = sessionToken
	m.LastOTP = otp
	if m.VerifyErr != nil {
		return nil, m.VerifyErr
	}
	return m.Credential.Clone(), nil
}

// RefreshToken counts the call and returns RefreshResult.
func (m *MockAuthAPI) RefreshToken(ctx context.Context, refreshToken string) (*domain.RefreshResult, error) {
	m.RefreshCalls.Add(1)
	m.mu.Lock()
	m.LastRefresh = refreshToken
	gate := m.RefreshGate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RefreshErr != nil {
		return nil, m.RefreshErr
	}
	if m.RefreshResult == nil {
		return nil, domain.ErrSessionExpired
	}
	res := *m.RefreshResult
	return &res, nil
}

// Logout counts the call.
func (m *MockAuthAPI) Logout(_ context.Context, _ string) error {
	m.LogoutCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LogoutErr
}

// MockTimeEntryAPI is a test double for domain.TimeEntryAPI.
// Fields are ordered to minimize memory padding.
type MockTimeEntryAPI struct {
	Open         *domain.RemoteEntry
	MarkErrs     map[string]error // Per-id MarkSubmitted error
	ProjectsErr  error
	OpenErr      error
	StartErr     error
	EndErr       error
	PendingErr   error
	Projects     []domain.Project
	Pending      []domain.RemoteEntry
	StartCalls   []string
	EndCalls     []string
	MarkCalls    []string
	StartIDs     []string // Returned in order by StartEntry; falls back to "remote-N"
	PendingCalls int
	mu           sync.Mutex
}

// Ensure MockTimeEntryAPI implements domain.TimeEntryAPI.
var _ domain.TimeEntryAPI = (*MockTimeEntryAPI)(nil)

// NewMockTimeEntryAPI creates a MockTimeEntryAPI with initialized maps.
func NewMockTimeEntryAPI() *MockTimeEntryAPI {
	return &MockTimeEntryAPI{MarkErrs: make(map[string]error)}
}

// ListProjects returns Projects.
func (m *MockTimeEntryAPI) ListProjects(_ context.Context) ([]domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ProjectsErr != nil {
		return nil, m.ProjectsErr
	}
	return slices.Clone(m.Projects), nil
}

// OpenEntry returns Open.
func (m *MockTimeEntryAPI) OpenEntry(_ context.Context) (*domain.RemoteEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	if m.Open == nil {
		return nil, nil
	}
	open := *m.Open
	return &open, nil
}

// StartEntry records the project and returns the next id.
func (m *MockTimeEntryAPI) StartEntry(_ context.Context, projectID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartCalls = append(m.StartCalls, projectID)
	if m.StartErr != nil {
		return "", m.StartErr
	}
	if len(m.StartIDs) > 0 {
		id := m.StartIDs[0]
		m.StartIDs = m.StartIDs[1:]
		return id, nil
	}
	return fmt.Sprintf("remote-%d", len(m.StartCalls)), nil
}

// EndEntry records the entry id.
func (m *MockTimeEntryAPI) EndEntry(_ context.Context, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EndCalls = append(m.EndCalls, entryID)
	return m.EndErr
}

// MyPending returns Pending.
func (m *MockTimeEntryAPI) MyPending(_ context.Context) ([]domain.RemoteEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PendingCalls++
	if m.PendingErr != nil {
		return nil, m.PendingErr
	}
	return slices.Clone(m.Pending), nil
}

// MarkSubmitted records the id and returns its configured error.
func (m *MockTimeEntryAPI) MarkSubmitted(_ context.Context, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarkCalls = append(m.MarkCalls, entryID)
	return m.MarkErrs[entryID]
}

// SetMarkErr configures the MarkSubmitted error for id (nil clears it).
func (m *MockTimeEntryAPI) SetMarkErr(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.MarkErrs, id)
		return
	}
	m.MarkErrs[id] = err
}

// Calls returns copies of the recorded start, end and mark calls.
func (m *MockTimeEntryAPI) Calls() (starts, ends, marks []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.StartCalls), slices.Clone(m.EndCalls), slices.Clone(m.MarkCalls)
}

// MockReportAPI is a test double for domain.ReportAPI.
// Fields are ordered to minimize memory padding.
type MockReportAPI struct {
	Tasks     map[string][]domain.ReportTask // Keyed by "<projectID>@<day>"
	TasksErr  error
	CreateErr error
	Created   []domain.CreateReportInput
	TaskCalls int
	nextID    int
	nextTask  int
	mu        sync.Mutex
}

// Ensure MockReportAPI implements domain.ReportAPI.
var _ domain.ReportAPI = (*MockReportAPI)(nil)

// NewMockReportAPI creates a MockReportAPI with initialized maps.
func NewMockReportAPI() *MockReportAPI {
	return &MockReportAPI{Tasks: make(map[string][]domain.ReportTask)}
}

// MyTasks returns the tasks configured for the project and day.
func (m *MockReportAPI) MyTasks(_ context.Context, projectID, day string) ([]domain.ReportTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TaskCalls++
	if m.TasksErr != nil {
		return nil, m.TasksErr
	}
	return slices.Clone(m.Tasks[domain.GroupKey{ProjectID: projectID, Day: day}.String()]), nil
}

// CreateReport records the input and returns a report, assigning an id when
// the input carries none.
func (m *MockReportAPI) CreateReport(_ context.Context, in domain.CreateReportInput) (*domain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Created = append(m.Created, in)
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	id := in.ReportID
	if id == "" {
		m.nextID++
		id = fmt.Sprintf("report-%d", m.nextID)
	}
	tasks := make([]domain.ReportTask, len(in.Tasks))
	for i, t := range in.Tasks {
		t.ReportID = id
		t.ReportDate = in.ReportDate
		if t.ID == "" {
			// Task ids are unique across calls, like server-assigned ids.
			m.nextTask++
			t.ID = fmt.Sprintf("%s-task-%d", id, m.nextTask)
		}
		tasks[i] = t
	}
	return &domain.Report{ID: id, Date: in.ReportDate, Tasks: tasks}, nil
}

// MockDisconnecter counts Disconnect calls.
type MockDisconnecter struct {
	Calls atomic.Int32
}

// Disconnect counts the call.
func (m *MockDisconnecter) Disconnect() {
	m.Calls.Add(1)
}

// MockConfigLoader is a test double for domain.ConfigLoader.
type MockConfigLoader struct {
	Config  *domain.Config
	LoadErr error
}

// Ensure MockConfigLoader implements domain.ConfigLoader interface.
var _ domain.ConfigLoader = (*MockConfigLoader)(nil)

// NewMockConfigLoader creates a new MockConfigLoader with default config.
func NewMockConfigLoader() *MockConfigLoader {
	return &MockConfigLoader{Config: domain.NewDefaultConfig()}
}

// Load returns the configured config or error.
func (m *MockConfigLoader) Load() (*domain.Config, error) {
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	return m.Config, nil
}

// MockConfigManager is a test double for domain.ConfigManager.
// Fields are ordered to minimize memory padding.
type MockConfigManager struct {
	InitErr    error
	Info       domain.ConfigInfo
	InitCalled bool
}

// Ensure MockConfigManager implements domain.ConfigManager interface.
var _ domain.ConfigManager = (*MockConfigManager)(nil)

// GetGlobalConfigInfo returns Info.
func (m *MockConfigManager) GetGlobalConfigInfo() domain.ConfigInfo {
	return m.Info
}

// InitGlobalConfig records the call and returns InitErr.
func (m *MockConfigManager) InitGlobalConfig(_ *domain.Config) error {
	m.InitCalled = true
	return m.InitErr
}
