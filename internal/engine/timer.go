// Package engine holds the local timer and the pending-task workflow, and
// reconciles both with the server.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/runoshun/tracksync/internal/domain"
)

// TickInterval is the granularity of tick publication.
const TickInterval = time.Second

// Tick is one publication of the running timer.
type Tick struct {
	At      time.Time
	Running *domain.TimeEntry
	Elapsed time.Duration
}

// Timer is the local timer. At most one entry runs at a time; closed
// entries and per-project totals are persisted after every change.
// Fields are ordered to minimize memory padding.
type Timer struct {
	kv         domain.KeyValueStore
	api        domain.TimeEntryAPI
	clock      domain.Clock
	log        domain.Logger
	pending    *Pending
	running    *domain.TimeEntry
	newID      func() string
	attendance domain.Attendance
	entries    []domain.TimeEntry
	totals     []domain.ProjectTotal
	mu         sync.Mutex
}

// NewTimer creates a Timer. pending receives task events and is reset on
// logout; it may be nil.
func NewTimer(kv domain.KeyValueStore, api domain.TimeEntryAPI, pending *Pending, clock domain.Clock, log domain.Logger) *Timer {
	return &Timer{
		kv:      kv,
		api:     api,
		pending: pending,
		clock:   clock,
		log:     log,
		newID:   uuid.NewString,
	}
}

// state is a copy of the mutable fields, used to roll back a failed save.
type state struct {
	running *domain.TimeEntry
	entries []domain.TimeEntry
	totals  []domain.ProjectTotal
}

func (t *Timer) snapshotLocked() state {
	s := state{
		entries: slices.Clone(t.entries),
		totals:  slices.Clone(t.totals),
	}
	if t.running != nil {
		r := *t.running
		s.running = &r
	}
	return s
}

func (t *Timer) rollbackLocked(s state) {
	t.running, t.entries, t.totals = s.running, s.entries, s.totals
}

// commitLocked persists the timer state, restoring prev on failure.
func (t *Timer) commitLocked(prev state) error {
	if err := t.saveLocked(); err != nil {
		t.rollbackLocked(prev)
		t.log.Error("timer", fmt.Sprintf("persist failed: %v", err))
		return fmt.Errorf("persist timer: %w", err)
	}
	return nil
}

func (t *Timer) saveLocked() error {
	if t.running == nil {
		if err := t.kv.Delete(domain.KeyRunningEntry); err != nil {
			return err
		}
	} else if err := putJSON(t.kv, domain.KeyRunningEntry, t.running); err != nil {
		return err
	}
	if err := putJSON(t.kv, domain.KeyClosedEntries, t.entries); err != nil {
		return err
	}
	return putJSON(t.kv, domain.KeyProjectTotals, t.totals)
}

// closeLocked ends the running entry at end and books its duration.
func (t *Timer) closeLocked(end time.Time) *domain.TimeEntry {
	if t.running == nil {
		return nil
	}
	e := *t.running
	e.Close(end)
	t.entries = append(t.entries, e)
	t.addTotalLocked(e.ProjectID, e.ProjectName, *e.Duration)
	t.running = nil
	return &e
}

func (t *Timer) addTotalLocked(projectID, projectName string, d time.Duration) {
	for i := range t.totals {
		if t.totals[i].ProjectID == projectID {
			t.totals[i].Total += d
			if projectName != "" {
				t.totals[i].ProjectName = projectName
			}
			return
		}
	}
	t.totals = append(t.totals, domain.ProjectTotal{ProjectID: projectID, ProjectName: projectName, Total: d})
}

func (t *Timer) startLocked(project domain.Project, at time.Time) *domain.TimeEntry {
	t.running = &domain.TimeEntry{
		ID:          t.newID(),
		ProjectID:   project.ID,
		ProjectName: project.Name,
		StartTime:   at,
		IsRunning:   true,
	}
	e := *t.running
	return &e
}

// Start starts a timer on project, stopping the running one first.
// Only a persistence failure fails it; the server is notified best-effort.
func (t *Timer) Start(ctx context.Context, project domain.Project) (*domain.TimeEntry, error) {
	if project.ID == "" {
		return nil, domain.ErrProjectRequired
	}

	t.mu.Lock()
	prev := t.snapshotLocked()
	now := t.clock.Now()
	closed := t.closeLocked(now)
	started := t.startLocked(project, now)
	if err := t.commitLocked(prev); err != nil {
		t.mu.Unlock()
		return nil, err
	}
	t.mu.Unlock()

	t.log.Info("timer", fmt.Sprintf("started %s", project.ID))
	if closed != nil {
		t.notifyEnd(ctx, closed)
	}
	t.notifyStart(ctx, started)
	return started, nil
}

// Stop stops the running timer and returns the closed entry, or nil when
// nothing runs.
func (t *Timer) Stop(ctx context.Context) (*domain.TimeEntry, error) {
	t.mu.Lock()
	if t.running == nil {
		t.mu.Unlock()
		return nil, nil
	}
	prev := t.snapshotLocked()
	closed := t.closeLocked(t.clock.Now())
	if err := t.commitLocked(prev); err != nil {
		t.mu.Unlock()
		return nil, err
	}
	t.mu.Unlock()

	t.log.Info("timer", fmt.Sprintf("stopped %s after %s", closed.ProjectID, closed.Duration.Round(time.Second)))
	t.notifyEnd(ctx, closed)
	return closed, nil
}

// Switch stops the running timer and starts one on project at the same
// instant, atomically with respect to other timer operations.
func (t *Timer) Switch(ctx context.Context, project domain.Project) (closed, started *domain.TimeEntry, err error) {
	if project.ID == "" {
		return nil, nil, domain.ErrProjectRequired
	}

	t.mu.Lock()
	prev := t.snapshotLocked()
	now := t.clock.Now()
	closed = t.closeLocked(now)
	started = t.startLocked(project, now)
	if err := t.commitLocked(prev); err != nil {
		t.mu.Unlock()
		return nil, nil, err
	}
	t.mu.Unlock()

	t.log.Info("timer", fmt.Sprintf("switched to %s", project.ID))
	if closed != nil {
		t.notifyEnd(ctx, closed)
	}
	t.notifyStart(ctx, started)
	return closed, started, nil
}

func (t *Timer) notifyStart(ctx context.Context, e *domain.TimeEntry) {
	remoteID, err := t.api.StartEntry(ctx, e.ProjectID)
	if err != nil {
		t.log.Warn("timer", fmt.Sprintf("server start failed for %s: %v", e.ProjectID, err))
		return
	}
	if remoteID == "" {
		return
	}
	e.RemoteID = remoteID

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running != nil && t.running.ID == e.ID && t.running.RemoteID == "" {
		t.running.RemoteID = remoteID
		if err := t.saveLocked(); err != nil {
			t.log.Warn("timer", fmt.Sprintf("persist remote id: %v", err))
		}
	}
}

func (t *Timer) notifyEnd(ctx context.Context, e *domain.TimeEntry) {
	if err := t.api.EndEntry(ctx, e.RemoteID); err != nil {
		t.log.Warn("timer", fmt.Sprintf("server stop failed for %s: %v", e.ProjectID, err))
	}
}

// ResetAllProjectTimes clears closed entries and project totals.
// The running entry is kept.
func (t *Timer) ResetAllProjectTimes() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.snapshotLocked()
	t.entries = nil
	t.totals = nil
	if err := t.commitLocked(prev); err != nil {
		return err
	}
	t.log.Info("timer", "project times reset")
	return nil
}

// Load reloads the persisted state without contacting the server.
func (t *Timer) Load() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var running *domain.TimeEntry
	var entries []domain.TimeEntry
	var totals []domain.ProjectTotal
	var attendance domain.Attendance
	for key, v := range map[string]any{
		domain.KeyRunningEntry:  &running,
		domain.KeyClosedEntries: &entries,
		domain.KeyProjectTotals: &totals,
		domain.KeyAttendance:    &attendance,
	} {
		if err := getJSON(t.kv, key, v); err != nil {
			return fmt.Errorf("restore %s: %w", key, err)
		}
	}
	if running != nil && !running.IsRunning {
		running = nil
	}
	t.running, t.entries, t.totals, t.attendance = running, entries, totals, attendance
	return nil
}

// Restore reloads the persisted state and reconciles it with the server's
// open entry. An unreachable server leaves the local state as is.
func (t *Timer) Restore(ctx context.Context) error {
	if err := t.Load(); err != nil {
		return err
	}

	open, err := t.api.OpenEntry(ctx)
	if err != nil {
		t.log.Warn("timer", fmt.Sprintf("open entry unavailable, keeping local state: %v", err))
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.snapshotLocked()
	if !t.reconcileLocked(open) {
		return nil
	}
	return t.commitLocked(prev)
}

// reconcileLocked aligns the running entry with the server's open entry
// and reports whether anything changed.
func (t *Timer) reconcileLocked(open *domain.RemoteEntry) bool {
	local := t.running
	switch {
	case open == nil:
		if local == nil || local.RemoteID == "" {
			return false
		}
		// Ended on another device while we were away.
		t.log.Info("timer", fmt.Sprintf("server has no open entry, closing %s", local.RemoteID))
		t.closeLocked(t.clock.Now())
		return true

	case local == nil:
		t.adoptLocked(open)
		t.log.Info("timer", fmt.Sprintf("adopted server entry %s", open.ID))
		return true

	case local.RemoteID == open.ID:
		return false

	case local.RemoteID == "" && local.ProjectID == open.ProjectID:
		local.RemoteID = open.ID
		return true

	default:
		end := open.StartTime
		if end.Before(local.StartTime) {
			end = local.StartTime
		}
		t.closeLocked(end)
		t.adoptLocked(open)
		t.log.Info("timer", fmt.Sprintf("server entry %s supersedes local entry", open.ID))
		return true
	}
}

func (t *Timer) adoptLocked(open *domain.RemoteEntry) {
	start := open.StartTime
	if start.IsZero() {
		start = t.clock.Now()
	}
	t.running = &domain.TimeEntry{
		ID:          t.newID(),
		RemoteID:    open.ID,
		ProjectID:   open.ProjectID,
		ProjectName: open.ProjectName,
		StartTime:   start,
		IsRunning:   true,
	}
}

// Running returns a copy of the running entry, or nil.
func (t *Timer) Running() *domain.TimeEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running == nil {
		return nil
	}
	e := *t.running
	return &e
}

// Entries returns the closed entries in close order.
func (t *Timer) Entries() []domain.TimeEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.entries)
}

// Totals returns the tracked time per project, excluding the running entry.
func (t *Timer) Totals() []domain.ProjectTotal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.totals)
}

// Attendance returns the last known attendance state.
func (t *Timer) Attendance() domain.Attendance {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attendance
}

// Ticks publishes the running entry every TickInterval until ctx ends.
// A slow consumer misses ticks; the channel is closed when ctx ends.
func (t *Timer) Ticks(ctx context.Context) <-chan Tick {
	ch := make(chan Tick, 1)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case ch <- t.tick():
				default:
				}
			}
		}
	}()
	return ch
}

func (t *Timer) tick() Tick {
	now := t.clock.Now()
	tick := Tick{At: now, Running: t.Running()}
	if tick.Running != nil {
		tick.Elapsed = tick.Running.Elapsed(now)
	}
	return tick
}

// Apply merges a realtime event into the local state. Redelivered events
// are recognized by remote entry id and applied once.
func (t *Timer) Apply(ev domain.Event) {
	switch e := ev.(type) {
	case domain.TimeEntryStarted:
		t.applyStarted(e)
	case domain.TimeEntryEnded:
		t.applyEnded(e)
	case domain.AttendanceCheckedIn:
		t.applyAttendance(true, e.At)
	case domain.AttendanceCheckedOut:
		t.applyAttendance(false, e.At)
	case domain.TaskCreated, domain.TaskUpdated, domain.TaskDeleted:
		if t.pending != nil {
			t.pending.ApplyTaskEvent(ev)
		}
	case domain.TokenError, domain.UnknownEvent:
		// Handled by the session owner.
	}
}

func (t *Timer) knownClosedLocked(remoteID string) bool {
	if remoteID == "" {
		return false
	}
	for _, e := range t.entries {
		if e.RemoteID == remoteID {
			return true
		}
	}
	return false
}

func (t *Timer) applyStarted(e domain.TimeEntryStarted) {
	t.mu.Lock()
	defer t.mu.Unlock()

	local := t.running
	if local != nil && e.EntryID != "" && local.RemoteID == e.EntryID {
		return
	}
	if t.knownClosedLocked(e.EntryID) {
		return
	}

	prev := t.snapshotLocked()
	if local != nil && local.RemoteID == "" && local.ProjectID == e.ProjectID {
		// Our own start echoed back before StartEntry returned.
		local.RemoteID = e.EntryID
		_ = t.commitLocked(prev)
		return
	}

	start := e.StartTime
	if start.IsZero() {
		start = t.clock.Now()
	}
	if local != nil {
		end := start
		if end.Before(local.StartTime) {
			end = local.StartTime
		}
		t.closeLocked(end)
	}
	t.adoptLocked(&domain.RemoteEntry{
		ID:          e.EntryID,
		ProjectID:   e.ProjectID,
		ProjectName: e.ProjectName,
		StartTime:   start,
	})
	if err := t.commitLocked(prev); err == nil {
		t.log.Info("timer", fmt.Sprintf("remote start of %s applied", e.ProjectID))
	}
}

func (t *Timer) applyEnded(e domain.TimeEntryEnded) {
	t.mu.Lock()
	defer t.mu.Unlock()

	end := e.EndTime
	if end.IsZero() {
		end = t.clock.Now()
	}
	prev := t.snapshotLocked()

	local := t.running
	matches := local != nil &&
		((e.EntryID != "" && local.RemoteID == e.EntryID) ||
			(e.EntryID == "" && local.ProjectID == e.ProjectID))
	switch {
	case matches:
		t.closeLocked(end)
	case t.knownClosedLocked(e.EntryID):
		return
	case e.EntryID == "":
		return
	default:
		// Tracked elsewhere only; record it once so totals stay complete.
		d := e.Duration
		start := end.Add(-d)
		t.entries = append(t.entries, domain.TimeEntry{
			ID:          t.newID(),
			RemoteID:    e.EntryID,
			ProjectID:   e.ProjectID,
			ProjectName: e.ProjectName,
			StartTime:   start,
			EndTime:     &end,
			Duration:    &d,
		})
		t.addTotalLocked(e.ProjectID, e.ProjectName, d)
	}
	if err := t.commitLocked(prev); err == nil {
		t.log.Info("timer", fmt.Sprintf("remote stop of %s applied", e.ProjectID))
	}
}

func (t *Timer) applyAttendance(in bool, at time.Time) {
	if at.IsZero() {
		at = t.clock.Now()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attendance = domain.Attendance{CheckedIn: in, At: at}
	if err := putJSON(t.kv, domain.KeyAttendance, t.attendance); err != nil {
		t.log.Warn("timer", fmt.Sprintf("persist attendance: %v", err))
	}
}

// HandleLogout closes the running entry locally, without notifying the
// server, and resets the pending workflow.
func (t *Timer) HandleLogout() {
	t.mu.Lock()
	if t.running != nil {
		prev := t.snapshotLocked()
		t.closeLocked(t.clock.Now())
		_ = t.commitLocked(prev)
	}
	t.mu.Unlock()

	if t.pending != nil {
		t.pending.Reset()
	}
	t.log.Info("timer", "session state dropped after logout")
}

func putJSON(kv domain.KeyValueStore, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return kv.Set(key, data)
}

// getJSON decodes the value under key into v. A missing key leaves v as is.
func getJSON(kv domain.KeyValueStore, key string, v any) error {
	data, err := kv.Get(key)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
