// Package cli provides the command-line interface for tracksync.
package cli

import (
	"fmt"

	"github.com/runoshun/tracksync/internal/app"
	"github.com/runoshun/tracksync/internal/domain"
	"github.com/spf13/cobra"
)

// Command group IDs.
const (
	groupSetup   = "setup"
	groupSession = "session"
	groupTimer   = "timer"
	groupReport  = "report"
)

// skipPrepare marks commands that do not touch the local state store.
const skipPrepare = "skip-prepare"

// NewRootCommand creates the root command for tracksync.
// It receives the container for dependency injection and version for display.
func NewRootCommand(c *app.Container, version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "tracksync",
		Short: "Work time tracking client",
		Long: `tracksync tracks work time against projects and keeps the
local timer in step with the server over a realtime channel.

Sign in with 'tracksync login <email>' and 'tracksync verify <otp>',
then use 'start', 'stop' and 'switch' to track time. Entries without a
task are listed by 'tracksync pending list'.`,
		Version: version,
		// SilenceUsage prevents usage from being printed on errors
		SilenceUsage: true,
		// SilenceErrors prevents Cobra from printing errors (we handle it in main)
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip if container is nil (e.g. in tests)
			if c == nil {
				return nil
			}
			for _, w := range c.Config.Warnings {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", w)
			}
			if cmd.Annotations[skipPrepare] != "" {
				return nil
			}
			return c.Prepare()
		},
	}

	root.AddGroup(
		&cobra.Group{ID: groupSetup, Title: "Setup Commands:"},
		&cobra.Group{ID: groupSession, Title: "Session Commands:"},
		&cobra.Group{ID: groupTimer, Title: "Time Tracking:"},
		&cobra.Group{ID: groupReport, Title: "Task Reporting:"},
	)

	configCmd := newConfigCommand(c)
	configCmd.GroupID = groupSetup

	loginCmd := newLoginCommand(c)
	loginCmd.GroupID = groupSession

	verifyCmd := newVerifyCommand(c)
	verifyCmd.GroupID = groupSession

	logoutCmd := newLogoutCommand(c)
	logoutCmd.GroupID = groupSession

	whoamiCmd := newWhoamiCommand(c)
	whoamiCmd.GroupID = groupSession

	projectsCmd := newProjectsCommand(c)
	projectsCmd.GroupID = groupTimer

	startCmd := newStartCommand(c)
	startCmd.GroupID = groupTimer

	stopCmd := newStopCommand(c)
	stopCmd.GroupID = groupTimer

	switchCmd := newSwitchCommand(c)
	switchCmd.GroupID = groupTimer

	statusCmd := newStatusCommand(c)
	statusCmd.GroupID = groupTimer

	watchCmd := newWatchCommand(c)
	watchCmd.GroupID = groupTimer

	pendingCmd := newPendingCommand(c)
	pendingCmd.GroupID = groupReport

	versionCmd := &cobra.Command{
		Use:         "version",
		Short:       "Print the version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipPrepare: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "tracksync %s\n", version)
		},
	}

	root.AddCommand(
		configCmd,
		loginCmd,
		verifyCmd,
		logoutCmd,
		whoamiCmd,
		projectsCmd,
		startCmd,
		stopCmd,
		switchCmd,
		statusCmd,
		watchCmd,
		pendingCmd,
		versionCmd,
	)

	return root
}

// requireLogin fails with a hint when no credential is stored.
func requireLogin(c *app.Container) error {
	if !c.Credentials.IsLoggedIn() {
		return fmt.Errorf("%w (run 'tracksync login <email>')", domain.ErrNotLoggedIn)
	}
	return nil
}
