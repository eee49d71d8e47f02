// Package tui provides the terminal view that follows the running timer.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/runoshun/tracksync/internal/domain"
	"github.com/runoshun/tracksync/internal/engine"
)

// maxNameWidth bounds project names in the totals table.
const maxNameWidth = 32

// TimerSource is the part of the timer the view reads and drives.
type TimerSource interface {
	Running() *domain.TimeEntry
	Totals() []domain.ProjectTotal
	Attendance() domain.Attendance
	Stop(ctx context.Context) (*domain.TimeEntry, error)
}

// Model is the watch view model.
// Fields are ordered to minimize memory padding.
type Model struct {
	// Dependencies
	ctx      context.Context
	timer    TimerSource
	conn     func() string
	ticks    <-chan engine.Tick
	syncDone <-chan error

	// State
	last    engine.Tick
	err     error
	notice  string
	user    string
	keys    KeyMap
	styles  Styles
	help    help.Model
	width   int
	ended   bool
	stopped bool
}

// NewWatch creates the watch view. conn reports the realtime connection
// state; ticks and syncDone come from the timer and the event router.
func NewWatch(ctx context.Context, timer TimerSource, user string, conn func() string, ticks <-chan engine.Tick, syncDone <-chan error) *Model {
	return &Model{
		ctx:      ctx,
		timer:    timer,
		user:     user,
		conn:     conn,
		ticks:    ticks,
		syncDone: syncDone,
		keys:     DefaultKeyMap(),
		styles:   DefaultStyles(),
		help:     help.New(),
	}
}

// Init starts listening for ticks and the end of event routing.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(waitTick(m.ticks), waitSync(m.syncDone))
}

func waitTick(ticks <-chan engine.Tick) tea.Cmd {
	return func() tea.Msg {
		t, ok := <-ticks
		if !ok {
			return MsgTicksClosed{}
		}
		return MsgTick{Tick: t}
	}
}

func waitSync(done <-chan error) tea.Cmd {
	if done == nil {
		return nil
	}
	return func() tea.Msg {
		return MsgSyncEnded{Err: <-done}
	}
}

func (m *Model) stop() tea.Cmd {
	return func() tea.Msg {
		entry, err := m.timer.Stop(m.ctx)
		return MsgStopped{Entry: entry, Err: err}
	}
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case MsgTick:
		m.last = msg.Tick
		return m, waitTick(m.ticks)

	case MsgTicksClosed:
		return m, tea.Quit

	case MsgStopped:
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		if msg.Entry != nil && msg.Entry.Duration != nil {
			m.notice = fmt.Sprintf("Stopped %s after %s", name(msg.Entry.ProjectID, msg.Entry.ProjectName), clock(*msg.Entry.Duration))
		}
		m.last.Running = nil
		m.last.Elapsed = 0
		return m, nil

	case MsgSyncEnded:
		m.ended = true
		m.err = msg.Err
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Stop):
		if m.last.Running == nil && m.timer.Running() == nil {
			m.notice = "No timer running"
			return m, nil
		}
		return m, m.stop()
	}
	return m, nil
}

// View renders the model.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("tracksync"))
	b.WriteString("\n")

	b.WriteString(m.styles.Label.Render("User      "))
	b.WriteString(m.user)
	b.WriteString("\n")

	b.WriteString(m.styles.Label.Render("Realtime  "))
	state := m.conn()
	if state == "connected" {
		b.WriteString(m.styles.Connected.Render(state))
	} else {
		b.WriteString(m.styles.Disconnected.Render(state))
	}
	b.WriteString("\n")

	if a := m.timer.Attendance(); !a.At.IsZero() {
		b.WriteString(m.styles.Label.Render("Attendance"))
		if a.CheckedIn {
			fmt.Fprintf(&b, " checked in at %s", a.At.In(time.Local).Format("15:04"))
		} else {
			fmt.Fprintf(&b, " checked out at %s", a.At.In(time.Local).Format("15:04"))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	var timer string
	if r := m.last.Running; r != nil {
		timer = m.styles.Running.Render(name(r.ProjectID, r.ProjectName)) + "  " + m.styles.Elapsed.Render(clock(m.last.Elapsed))
	} else {
		timer = m.styles.Idle.Render("No timer running")
	}
	b.WriteString(m.styles.Box.Render(timer))
	b.WriteString("\n\n")

	if totals := m.timer.Totals(); len(totals) > 0 {
		b.WriteString(m.styles.Label.Render("Totals"))
		b.WriteString("\n")
		for _, t := range totals {
			label := lipgloss.NewStyle().Width(maxNameWidth).MaxWidth(maxNameWidth).Render(name(t.ProjectID, t.ProjectName))
			fmt.Fprintf(&b, "  %s %s\n", label, m.styles.Total.Render(clock(t.Total)))
		}
		b.WriteString("\n")
	}

	if m.notice != "" {
		b.WriteString(m.notice)
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(m.styles.Error.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	} else if m.ended {
		b.WriteString(m.styles.Disconnected.Render("Event sync stopped"))
		b.WriteString("\n")
	}

	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func name(id, projectName string) string {
	if projectName == "" {
		return id
	}
	return projectName
}

// clock renders d as H:MM:SS.
func clock(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	return fmt.Sprintf("%d:%02d:%02d", h, m, d/time.Second)
}
