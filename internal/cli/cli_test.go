package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/runoshun/tracksync/internal/app"
	"github.com/runoshun/tracksync/internal/domain"
	"github.com/runoshun/tracksync/internal/infra/realtime"
	"github.com/runoshun/tracksync/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type refusingDialer struct{}

func (refusingDialer) Dial(context.Context, string, string) (realtime.Conn, error) {
	return nil, domain.ErrNetwork
}

// testEnv bundles a container built on mocks with the mocks themselves.
type testEnv struct {
	c       *app.Container
	kv      *testutil.MemoryStore
	auth    *testutil.MockAuthAPI
	api     *testutil.MockTimeEntryAPI
	reports *testutil.MockReportAPI
	clock   *testutil.MockClock
	manager *testutil.MockConfigManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		kv:      testutil.NewMemoryStore(),
		auth:    &testutil.MockAuthAPI{LoginToken: "login-1"},
		api:     testutil.NewMockTimeEntryAPI(),
		reports: testutil.NewMockReportAPI(),
		clock:   testutil.NewMockClock(t0),
		manager: &testutil.MockConfigManager{Info: domain.ConfigInfo{Path: "/home/test/.config/tracksync/config.toml"}},
	}
	e.auth.Credential = &domain.Credential{AccessToken: "tok-1", RefreshToken: "refresh-1", UserID: "u1", Email: "ana@example.com", Name: "Ana"}
	e.api.Projects = []domain.Project{{ID: "p1", Name: "Alpha"}, {ID: "p2", Name: "Beta"}}
	e.c = app.NewWithDeps(domain.NewDefaultConfig(), app.Deps{
		Store:         e.kv,
		Clock:         e.clock,
		Logger:        &testutil.MockLogger{},
		ConfigLoader:  testutil.NewMockConfigLoader(),
		ConfigManager: e.manager,
		Auth:          e.auth,
		Entries:       e.api,
		Reports:       e.reports,
		Dialer:        refusingDialer{},
		Location:      time.UTC,
	})
	return e
}

// run executes the root command with args and returns stdout.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(e.c, "test")
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	_, err := e.run(t, "login", "ana@example.com")
	require.NoError(t, err)
	_, err = e.run(t, "verify", "123456")
	require.NoError(t, err)
}

func TestRootCommand_Help(t *testing.T) {
	e := newTestEnv(t)

	out, err := e.run(t, "--help")

	require.NoError(t, err)
	for _, want := range []string{"Session Commands:", "Time Tracking:", "Task Reporting:", "login", "switch", "pending"} {
		assert.Contains(t, out, want)
	}
}

func TestVersionCommand(t *testing.T) {
	e := newTestEnv(t)

	out, err := e.run(t, "version")

	require.NoError(t, err)
	assert.Equal(t, "tracksync test\n", out)
}

func TestLoginVerifyWhoami(t *testing.T) {
	// Setup
	e := newTestEnv(t)

	// Execute
	out, err := e.run(t, "login", "Ana@Example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "One-time password sent to ana@example.com")

	out, err = e.run(t, "verify", "123456")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Ana")

	out, err = e.run(t, "whoami")

	// Assert
	require.NoError(t, err)
	assert.Contains(t, out, "ana@example.com")
	assert.Equal(t, "login-1", e.auth.LastSession)
}

func TestCommandsRequireLogin(t *testing.T) {
	for _, args := range [][]string{{"whoami"}, {"projects"}, {"start", "p1"}, {"switch", "p1"}, {"watch"}, {"pending", "list"}} {
		e := newTestEnv(t)

		_, err := e.run(t, args...)

		assert.ErrorIs(t, err, domain.ErrNotLoggedIn, args)
	}
}

func TestStartStopStatus(t *testing.T) {
	// Setup
	e := newTestEnv(t)
	e.login(t)

	// Execute
	out, err := e.run(t, "start", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, "Started Alpha")

	e.clock.Advance(65 * time.Second)
	out, err = e.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Running: Alpha for 0:01:05")

	out, err = e.run(t, "stop")

	// Assert
	require.NoError(t, err)
	assert.Contains(t, out, "Stopped Alpha (0:01:05)")
	starts, ends, _ := e.api.Calls()
	assert.Equal(t, []string{"p1"}, starts)
	assert.Equal(t, []string{"remote-1"}, ends)

	out, err = e.run(t, "stop")
	require.NoError(t, err)
	assert.Contains(t, out, "No timer running")
}

func TestSwitchCommand(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)
	_, err := e.run(t, "start", "p1")
	require.NoError(t, err)
	e.clock.Advance(10 * time.Minute)

	out, err := e.run(t, "switch", "p2")

	require.NoError(t, err)
	assert.Contains(t, out, "Stopped Alpha (0:10:00)")
	assert.Contains(t, out, "Started Beta")
}

func TestStatusCommand_Formats(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)
	_, err := e.run(t, "start", "p1")
	require.NoError(t, err)
	e.clock.Advance(time.Hour)
	_, err = e.run(t, "stop")
	require.NoError(t, err)

	t.Run("json", func(t *testing.T) {
		out, err := e.run(t, "status", "-o", "json")
		require.NoError(t, err)

		var v statusView
		require.NoError(t, json.Unmarshal([]byte(out), &v))
		assert.True(t, v.LoggedIn)
		assert.Nil(t, v.Running)
		require.Len(t, v.Totals, 1)
		assert.Equal(t, time.Hour, v.Totals[0].Total)
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := e.run(t, "status", "-o", "yaml")
		require.NoError(t, err)

		var v map[string]any
		require.NoError(t, yaml.Unmarshal([]byte(out), &v))
		assert.Equal(t, true, v["logged_in"])
		assert.Contains(t, out, "project_name: Alpha")
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := e.run(t, "status", "-o", "xml")
		assert.ErrorContains(t, err, `unknown output format "xml"`)
	})
}

func TestProjectsCommand(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	out, err := e.run(t, "projects")

	require.NoError(t, err)
	assert.Contains(t, out, "p1")
	assert.Contains(t, out, "Beta")
}

func TestPendingCommands(t *testing.T) {
	// Setup
	e := newTestEnv(t)
	e.login(t)
	e.api.Pending = []domain.RemoteEntry{
		{ID: "a", ProjectID: "p1", ProjectName: "Alpha", StartTime: t0, Duration: time.Hour},
		{ID: "b", ProjectID: "p1", ProjectName: "Alpha", StartTime: t0.Add(2 * time.Hour), Duration: 30 * time.Minute},
	}

	// Execute + Assert
	out, err := e.run(t, "pending", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "p1@2026-03-02")
	assert.Contains(t, out, "1:30:00")

	_, err = e.run(t, "pending", "submit")
	assert.ErrorIs(t, err, domain.ErrPendingIncomplete)

	out, err = e.run(t, "pending", "add-task", "p1@2026-03-02", "--name", " Review ")
	require.NoError(t, err)
	assert.Contains(t, out, `Added task "Review" to p1@2026-03-02`)
	require.Len(t, e.reports.Created, 1)
	assert.Equal(t, "daily", e.reports.Created[0].Orientation)

	// The report now has a task for the group, so a fresh load counts it as complete.
	e.reports.Tasks["p1@2026-03-02"] = []domain.ReportTask{{ID: "t1", TaskName: "Review", ReportID: "report-1"}}
	out, err = e.run(t, "pending", "submit")
	require.NoError(t, err)
	assert.Contains(t, out, "Submitted 2 entries")
	_, _, marks := e.api.Calls()
	assert.Equal(t, []string{"a", "b"}, marks)
}

func TestPendingSkip_AfterLoadFailure(t *testing.T) {
	// Setup
	e := newTestEnv(t)
	e.login(t)
	e.api.PendingErr = domain.ErrNetwork

	_, err := e.run(t, "pending", "list")
	require.ErrorIs(t, err, domain.ErrNetwork)

	// Execute
	out, err := e.run(t, "pending", "skip")

	// Assert
	require.NoError(t, err)
	assert.Contains(t, out, "Pending tasks skipped")
	assert.Equal(t, domain.PendingSkipped, e.c.Pending.State())
}

func TestPendingAddTask_InvalidKey(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	_, err := e.run(t, "pending", "add-task", "p1", "--name", "x")

	assert.ErrorIs(t, err, domain.ErrInvalidGroupKey)
}

func TestLogoutCommand(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)
	_, err := e.run(t, "start", "p1")
	require.NoError(t, err)

	out, err := e.run(t, "logout")

	require.NoError(t, err)
	assert.Contains(t, out, "Stopped Alpha")
	assert.Contains(t, out, "Logged out")
	assert.False(t, e.c.Credentials.IsLoggedIn())
}

func TestConfigCommands(t *testing.T) {
	t.Run("show", func(t *testing.T) {
		e := newTestEnv(t)

		out, err := e.run(t, "config", "show")

		require.NoError(t, err)
		assert.Contains(t, out, "/home/test/.config/tracksync/config.toml (not found)")
		assert.Contains(t, out, "[Effective Config]")
		assert.Contains(t, out, "base_url")
	})

	t.Run("init", func(t *testing.T) {
		e := newTestEnv(t)

		out, err := e.run(t, "config", "init")

		require.NoError(t, err)
		assert.Contains(t, out, "Created config file")
		assert.True(t, e.manager.InitCalled)
	})
}

func TestWatchCommand(t *testing.T) {
	// Setup
	e := newTestEnv(t)
	e.login(t)
	var got tea.Model
	orig := runWatchFunc
	runWatchFunc = func(m tea.Model) error {
		got = m
		return nil
	}
	t.Cleanup(func() { runWatchFunc = orig })

	// Execute
	_, err := e.run(t, "watch")

	// Assert
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Contains(t, got.View(), "ana@example.com")
	assert.Equal(t, realtime.StateDisconnected, e.c.Realtime.State())
}

func TestWatchCommand_ProgramError(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)
	orig := runWatchFunc
	runWatchFunc = func(tea.Model) error { return errors.New("no tty") }
	t.Cleanup(func() { runWatchFunc = orig })

	_, err := e.run(t, "watch")

	assert.EqualError(t, err, "no tty")
}
