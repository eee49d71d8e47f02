package usecase_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/runoshun/tracksync/internal/domain"
	"github.com/runoshun/tracksync/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListProjects_Execute(t *testing.T) {
	t.Run("caches the list", func(t *testing.T) {
		// Setup
		f := newFixture(t)
		f.api.Projects = []domain.Project{alpha}

		// Execute
		out, err := usecase.NewListProjects(f.api, f.kv, f.log).Execute(context.Background(), usecase.ListProjectsInput{})

		// Assert
		require.NoError(t, err)
		assert.False(t, out.Cached)
		assert.Equal(t, []domain.Project{alpha}, out.Projects)
		var cached []domain.Project
		require.NoError(t, json.Unmarshal(f.kv.Values[domain.KeyProjects], &cached))
		assert.Equal(t, []domain.Project{alpha}, cached)
	})

	t.Run("falls back to cache when offline", func(t *testing.T) {
		f := newFixture(t)
		f.api.Projects = []domain.Project{alpha}
		uc := usecase.NewListProjects(f.api, f.kv, f.log)
		_, err := uc.Execute(context.Background(), usecase.ListProjectsInput{})
		require.NoError(t, err)
		f.api.ProjectsErr = domain.ErrNetwork

		out, err := uc.Execute(context.Background(), usecase.ListProjectsInput{})

		require.NoError(t, err)
		assert.True(t, out.Cached)
		assert.Equal(t, []domain.Project{alpha}, out.Projects)
	})

	t.Run("offline without cache fails", func(t *testing.T) {
		f := newFixture(t)
		f.api.ProjectsErr = domain.ErrNetwork

		_, err := usecase.NewListProjects(f.api, f.kv, f.log).Execute(context.Background(), usecase.ListProjectsInput{})

		assert.ErrorIs(t, err, domain.ErrNetwork)
	})

	t.Run("expired session is not masked by the cache", func(t *testing.T) {
		f := newFixture(t)
		data, _ := json.Marshal([]domain.Project{alpha})
		f.kv.Values[domain.KeyProjects] = data
		f.api.ProjectsErr = domain.ErrSessionExpired

		_, err := usecase.NewListProjects(f.api, f.kv, f.log).Execute(context.Background(), usecase.ListProjectsInput{})

		assert.ErrorIs(t, err, domain.ErrSessionExpired)
	})
}

func TestStartTimer_Execute(t *testing.T) {
	beta := domain.Project{ID: "p2", Name: "Beta"}

	t.Run("requires a project", func(t *testing.T) {
		f := newFixture(t)
		uc := usecase.NewStartTimer(f.timer, usecase.NewListProjects(f.api, f.kv, f.log))

		_, err := uc.Execute(context.Background(), usecase.StartTimerInput{})

		assert.ErrorIs(t, err, domain.ErrProjectRequired)
	})

	t.Run("unknown project", func(t *testing.T) {
		f := newFixture(t)
		f.api.Projects = []domain.Project{alpha}
		uc := usecase.NewStartTimer(f.timer, usecase.NewListProjects(f.api, f.kv, f.log))

		_, err := uc.Execute(context.Background(), usecase.StartTimerInput{ProjectID: "nope"})

		assert.ErrorContains(t, err, `project "nope" not found`)
		assert.Nil(t, f.timer.Running())
	})

	t.Run("offline start keeps the id", func(t *testing.T) {
		f := newFixture(t)
		f.api.ProjectsErr = domain.ErrNetwork
		uc := usecase.NewStartTimer(f.timer, usecase.NewListProjects(f.api, f.kv, f.log))

		out, err := uc.Execute(context.Background(), usecase.StartTimerInput{ProjectID: "p9"})

		require.NoError(t, err)
		assert.Equal(t, "p9", out.Started.ProjectID)
		assert.Empty(t, out.Started.ProjectName)
	})

	t.Run("expired session does not start", func(t *testing.T) {
		f := newFixture(t)
		f.api.ProjectsErr = domain.ErrSessionExpired
		uc := usecase.NewStartTimer(f.timer, usecase.NewListProjects(f.api, f.kv, f.log))

		_, err := uc.Execute(context.Background(), usecase.StartTimerInput{ProjectID: "p9"})

		assert.ErrorIs(t, err, domain.ErrSessionExpired)
		assert.Nil(t, f.timer.Running())
	})

	t.Run("switch closes the running entry at the same instant", func(t *testing.T) {
		// Setup
		f := newFixture(t)
		f.api.Projects = []domain.Project{alpha, beta}
		uc := usecase.NewStartTimer(f.timer, usecase.NewListProjects(f.api, f.kv, f.log))
		_, err := uc.Execute(context.Background(), usecase.StartTimerInput{ProjectID: "p1"})
		require.NoError(t, err)
		f.clock.Advance(5 * time.Minute)

		// Execute
		out, err := uc.Execute(context.Background(), usecase.StartTimerInput{ProjectID: "p2", Switch: true})

		// Assert
		require.NoError(t, err)
		require.NotNil(t, out.Stopped)
		assert.Equal(t, "p1", out.Stopped.ProjectID)
		assert.Equal(t, *out.Stopped.EndTime, out.Started.StartTime)
		assert.Equal(t, "Beta", f.timer.Running().ProjectName)
	})
}

func TestStopTimer_Execute_Idle(t *testing.T) {
	f := newFixture(t)

	out, err := usecase.NewStopTimer(f.timer).Execute(context.Background(), usecase.StopTimerInput{})

	require.NoError(t, err)
	assert.Nil(t, out.Stopped)
}

func TestSubmitPending_Execute(t *testing.T) {
	seed := func(t *testing.T) *fixture {
		t.Helper()
		f := newFixture(t)
		f.api.Pending = []domain.RemoteEntry{
			{ID: "a", ProjectID: "p1", ProjectName: "Alpha", StartTime: t0, Duration: time.Hour},
		}
		_, err := f.timer.Start(context.Background(), alpha)
		require.NoError(t, err)
		f.clock.Advance(time.Hour)
		_, err = f.timer.Stop(context.Background())
		require.NoError(t, err)
		require.NoError(t, f.pending.Load(context.Background()))
		return f
	}

	t.Run("incomplete groups block submission", func(t *testing.T) {
		f := seed(t)

		_, err := usecase.NewSubmitPending(f.pending, f.timer, f.log).Execute(context.Background(), usecase.SubmitPendingInput{})

		assert.ErrorIs(t, err, domain.ErrPendingIncomplete)
		assert.NotEmpty(t, f.timer.Totals())
	})

	t.Run("submits and resets totals", func(t *testing.T) {
		// Setup
		f := seed(t)
		key := domain.GroupKey{ProjectID: "p1", Day: "2026-03-02"}
		require.NoError(t, f.pending.AddTaskToEntry(context.Background(), key, domain.ReportTask{TaskName: "Review"}))

		// Execute
		out, err := usecase.NewSubmitPending(f.pending, f.timer, f.log).Execute(context.Background(), usecase.SubmitPendingInput{})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 1, out.Submitted)
		assert.Equal(t, domain.PendingCompleted, f.pending.State())
		assert.Empty(t, f.timer.Totals())
	})

	t.Run("partial failure keeps totals", func(t *testing.T) {
		f := seed(t)
		key := domain.GroupKey{ProjectID: "p1", Day: "2026-03-02"}
		require.NoError(t, f.pending.AddTaskToEntry(context.Background(), key, domain.ReportTask{TaskName: "Review"}))
		f.api.SetMarkErr("a", domain.ErrNetwork)

		out, err := usecase.NewSubmitPending(f.pending, f.timer, f.log).Execute(context.Background(), usecase.SubmitPendingInput{})

		assert.ErrorIs(t, err, domain.ErrNetwork)
		assert.Zero(t, out.Submitted)
		assert.NotEmpty(t, f.timer.Totals())
	})
}
