package cli

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/runoshun/tracksync/internal/app"
	"github.com/runoshun/tracksync/internal/domain"
	"github.com/runoshun/tracksync/internal/tui"
	"github.com/spf13/cobra"
)

// runWatchFunc runs the watch program, allowing it to be replaced in tests.
var runWatchFunc = func(m tea.Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// newWatchCommand creates the watch command.
func newWatchCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the running timer live",
		Long: `Open a live view of the running timer.

The view connects to the realtime channel, so timers started or stopped
from other devices show up here. Press 's' to stop the timer and 'q' to quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireLogin(c); err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			syncDone := c.StartSync(ctx)
			if err := c.Resume(ctx); err != nil {
				return err
			}
			defer c.Realtime.Disconnect()

			user := ""
			if cred := c.Credentials.Get(); cred != nil {
				user = cred.Email
			}
			m := tui.NewWatch(ctx, c.Timer, user, func() string { return string(c.Realtime.State()) }, c.Timer.Ticks(ctx), syncDone)
			if err := runWatchFunc(m); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return err
			}
			if !c.Credentials.IsLoggedIn() {
				return domain.ErrSessionExpired
			}
			return nil
		},
	}
}
