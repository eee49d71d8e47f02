package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/runoshun/tracksync/internal/domain"
)

// reportOrientation is sent with every report creation.
const reportOrientation = "daily"

// Pending drives the pending-task workflow: it loads unsubmitted entries,
// collects a task per (project, day) group and marks the raw entries
// submitted.
// Fields are ordered to minimize memory padding.
type Pending struct {
	entries   domain.TimeEntryAPI
	reports   domain.ReportAPI
	log       domain.Logger
	loc       *time.Location
	lastErr   error
	reportIDs map[domain.GroupKey]string
	completed map[domain.GroupKey]bool
	acked     map[string]bool
	state     domain.PendingState
	groups    []*domain.PendingTimeEntry
	mu        sync.Mutex
	submitMu  sync.Mutex
	loaded    bool
}

// NewPending creates a Pending workflow in the initial state.
// Days are computed in loc (time.Local when nil).
func NewPending(entries domain.TimeEntryAPI, reports domain.ReportAPI, log domain.Logger, loc *time.Location) *Pending {
	if loc == nil {
		loc = time.Local
	}
	p := &Pending{entries: entries, reports: reports, log: log, loc: loc}
	p.resetLocked()
	return p
}

func (p *Pending) resetLocked() {
	p.state = domain.PendingInitial
	p.groups = nil
	p.loaded = false
	p.lastErr = nil
	p.reportIDs = make(map[domain.GroupKey]string)
	p.completed = make(map[domain.GroupKey]bool)
	p.acked = make(map[string]bool)
}

// Reset returns the workflow to its initial state, forgetting everything
// learned in the session.
func (p *Pending) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}

func (p *Pending) transitionLocked(to domain.PendingState) error {
	if !p.state.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, p.state, to)
	}
	p.log.Debug("pending", fmt.Sprintf("%s -> %s", p.state, to))
	p.state = to
	return nil
}

// MergePending groups remote entries by project and calendar day in loc.
// Group order and entry order within a group follow the input. Entries
// already submitted, or whose ids are all in skip, are left out.
func MergePending(entries []domain.RemoteEntry, loc *time.Location, skip map[string]bool) []*domain.PendingTimeEntry {
	if loc == nil {
		loc = time.Local
	}
	var groups []*domain.PendingTimeEntry
	index := make(map[domain.GroupKey]*domain.PendingTimeEntry)

	for _, e := range entries {
		if e.TaskSubmitted || e.ProjectID == "" {
			continue
		}
		ids := make([]string, 0, len(e.IDs()))
		for _, id := range e.IDs() {
			if !skip[id] {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			continue
		}

		key := domain.GroupKey{ProjectID: e.ProjectID, Day: e.StartTime.In(loc).Format(domain.DayLayout)}
		g, ok := index[key]
		if !ok {
			g = &domain.PendingTimeEntry{Key: key}
			index[key] = g
			groups = append(groups, g)
		}
		if g.ProjectName == "" {
			g.ProjectName = e.ProjectName
		}
		for _, id := range ids {
			g.AddEntryID(id)
		}
		g.TotalDuration += e.Duration
	}
	return groups
}

// Load fetches the pending entries and the tasks already reported for
// each group. Groups completed earlier in the session stay complete.
// When a re-fetch fails the cached groups are kept and the workflow stays
// loaded; the error is still returned and reported by Err.
func (p *Pending) Load(ctx context.Context) error {
	p.mu.Lock()
	if err := p.transitionLocked(domain.PendingLoading); err != nil {
		p.mu.Unlock()
		return err
	}
	skip := make(map[string]bool, len(p.acked))
	for id := range p.acked {
		skip[id] = true
	}
	p.mu.Unlock()

	remote, err := p.entries.MyPending(ctx)
	if err != nil {
		p.mu.Lock()
		p.lastErr = err
		if p.loaded {
			_ = p.transitionLocked(domain.PendingLoaded)
			p.log.Warn("pending", fmt.Sprintf("reload failed, keeping %d cached groups: %v", len(p.groups), err))
		} else {
			_ = p.transitionLocked(domain.PendingError)
			p.log.Warn("pending", fmt.Sprintf("load failed: %v", err))
		}
		p.mu.Unlock()
		return fmt.Errorf("load pending entries: %w", err)
	}

	groups := MergePending(remote, p.loc, skip)
	for _, g := range groups {
		tasks, err := p.reports.MyTasks(ctx, g.Key.ProjectID, g.Key.Day)
		if err != nil {
			p.log.Warn("pending", fmt.Sprintf("tasks for %s: %v", g.Key, err))
			continue
		}
		g.Tasks = tasks
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, g := range groups {
		for _, t := range g.Tasks {
			if t.ReportID != "" {
				p.reportIDs[g.Key] = t.ReportID
				break
			}
		}
		if len(g.Tasks) > 0 {
			p.completed[g.Key] = true
		}
		g.LocallyCompleted = p.completed[g.Key]
	}
	p.groups = groups
	p.loaded = true
	p.lastErr = nil
	p.log.Info("pending", fmt.Sprintf("loaded %d groups from %d entries", len(groups), len(remote)))
	return p.transitionLocked(domain.PendingLoaded)
}

// State returns the workflow state.
func (p *Pending) State() domain.PendingState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Err returns the error of the last load, or nil when it succeeded.
func (p *Pending) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Groups returns a copy of the current groups.
func (p *Pending) Groups() []domain.PendingTimeEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.PendingTimeEntry, 0, len(p.groups))
	for _, g := range p.groups {
		c := *g
		c.AllEntryIDs = slices.Clone(g.AllEntryIDs)
		c.Tasks = slices.Clone(g.Tasks)
		out = append(out, c)
	}
	return out
}

// AllEntriesCompleted reports whether every group has at least one task.
// It is false until the entries are loaded once. A re-fetch in flight does
// not change the answer.
func (p *Pending) AllEntriesCompleted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allCompletedLocked()
}

func (p *Pending) allCompletedLocked() bool {
	if !p.loaded || p.state == domain.PendingSkipped {
		return false
	}
	for _, g := range p.groups {
		if !g.HasTask() {
			return false
		}
	}
	return true
}

func (p *Pending) groupLocked(key domain.GroupKey) *domain.PendingTimeEntry {
	for _, g := range p.groups {
		if g.Key == key {
			return g
		}
	}
	return nil
}

// AddTaskToEntry reports task on the group's day report, reusing the
// report id known for the group. On success the group is complete.
func (p *Pending) AddTaskToEntry(ctx context.Context, key domain.GroupKey, task domain.ReportTask) error {
	task.TaskName = strings.TrimSpace(task.TaskName)
	if task.TaskName == "" {
		return domain.ErrEmptyTaskName
	}

	p.mu.Lock()
	if p.state != domain.PendingLoaded {
		state := p.state
		p.mu.Unlock()
		return fmt.Errorf("%w: cannot add tasks while %s", domain.ErrInvalidTransition, state)
	}
	if p.groupLocked(key) == nil {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrGroupNotFound, key)
	}
	reportID := p.reportIDs[key]
	p.mu.Unlock()

	task.ProjectID = key.ProjectID
	task.ReportDate = key.Day
	report, err := p.reports.CreateReport(ctx, domain.CreateReportInput{
		ReportID:    reportID,
		ReportDate:  key.Day,
		Orientation: reportOrientation,
		Tasks:       []domain.ReportTask{task},
	})
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	created := report.Tasks
	if len(created) == 0 {
		task.ReportID = report.ID
		created = []domain.ReportTask{task}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if report.ID != "" {
		p.reportIDs[key] = report.ID
	}
	p.completed[key] = true
	if g := p.groupLocked(key); g != nil {
		g.LocallyCompleted = true
		for _, t := range created {
			upsertTask(g, t)
		}
	}
	p.log.Info("pending", fmt.Sprintf("task %q added to %s", task.TaskName, key))
	return nil
}

// MarkAllSubmitted flags every raw entry id of every group as submitted,
// one call per id. It stops at the first failure; ids already acknowledged
// are never sent again. Returns the number of ids acknowledged by this call.
func (p *Pending) MarkAllSubmitted(ctx context.Context) (int, error) {
	p.submitMu.Lock()
	defer p.submitMu.Unlock()

	p.mu.Lock()
	if p.state != domain.PendingLoaded {
		state := p.state
		p.mu.Unlock()
		return 0, fmt.Errorf("%w: cannot submit while %s", domain.ErrInvalidTransition, state)
	}
	if !p.allCompletedLocked() {
		p.mu.Unlock()
		return 0, domain.ErrPendingIncomplete
	}
	var ids []string
	for _, g := range p.groups {
		for _, id := range g.AllEntryIDs {
			if !p.acked[id] {
				ids = append(ids, id)
			}
		}
	}
	p.mu.Unlock()

	n := 0
	for _, id := range ids {
		err := p.entries.MarkSubmitted(ctx, id)
		if err != nil && !errors.Is(err, domain.ErrAlreadyDone) {
			p.log.Warn("pending", fmt.Sprintf("mark %s submitted: %v", id, err))
			return n, fmt.Errorf("mark %s submitted: %w", id, err)
		}
		p.mu.Lock()
		p.acked[id] = true
		p.mu.Unlock()
		n++
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.log.Info("pending", fmt.Sprintf("marked %d entries submitted", n))
	return n, p.transitionLocked(domain.PendingCompleted)
}

// Skip dismisses the workflow without server confirmation.
func (p *Pending) Skip() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transitionLocked(domain.PendingSkipped)
}

// ApplyTaskEvent merges a remote task change into the cached groups.
// A delete never makes a completed group incomplete.
func (p *Pending) ApplyTaskEvent(ev domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e := ev.(type) {
	case domain.TaskCreated:
		p.upsertLocked(e.Task)
	case domain.TaskUpdated:
		p.upsertLocked(e.Task)
	case domain.TaskDeleted:
		for _, g := range p.groups {
			if e.ProjectID != "" && g.Key.ProjectID != e.ProjectID {
				continue
			}
			g.Tasks = slices.DeleteFunc(g.Tasks, func(t domain.ReportTask) bool { return t.ID == e.TaskID })
		}
	}
}

func (p *Pending) upsertLocked(t domain.ReportTask) {
	key := domain.GroupKey{ProjectID: t.ProjectID, Day: t.ReportDate}
	g := p.groupLocked(key)
	if g == nil {
		return
	}
	upsertTask(g, t)
	if t.ReportID != "" {
		p.reportIDs[key] = t.ReportID
	}
	p.completed[key] = true
	g.LocallyCompleted = true
}

// upsertTask replaces the task with the same id or appends it.
func upsertTask(g *domain.PendingTimeEntry, t domain.ReportTask) {
	if t.ID != "" {
		for i := range g.Tasks {
			if g.Tasks[i].ID == t.ID {
				g.Tasks[i] = t
				return
			}
		}
	}
	g.Tasks = append(g.Tasks, t)
}
