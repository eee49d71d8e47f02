package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/runoshun/tracksync/internal/app"
	"github.com/runoshun/tracksync/internal/domain"
	"github.com/runoshun/tracksync/internal/usecase"
	"github.com/spf13/cobra"
)

// newProjectsCommand creates the projects command.
func newProjectsCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireLogin(c); err != nil {
				return err
			}
			out, err := c.ListProjectsUseCase().Execute(cmd.Context(), usecase.ListProjectsInput{})
			if err != nil {
				return err
			}
			if out.Cached {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Warning: server unreachable, showing cached projects")
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tNAME")
			for _, p := range out.Projects {
				_, _ = fmt.Fprintf(tw, "%s\t%s\n", p.ID, p.Name)
			}
			return tw.Flush()
		},
	}
}

// newStartCommand creates the start command.
func newStartCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "start <project-id>",
		Short: "Start tracking a project",
		Long: `Start tracking time on a project.

A timer already running on another project is stopped first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, c, args[0], false)
		},
	}
}

// newSwitchCommand creates the switch command.
func newSwitchCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <project-id>",
		Short: "Stop the running timer and start another at the same instant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, c, args[0], true)
		},
	}
}

func runStart(cmd *cobra.Command, c *app.Container, projectID string, switching bool) error {
	if err := requireLogin(c); err != nil {
		return err
	}
	out, err := c.StartTimerUseCase().Execute(cmd.Context(), usecase.StartTimerInput{
		ProjectID: projectID,
		Switch:    switching,
	})
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if out.Stopped != nil {
		_, _ = fmt.Fprintf(w, "Stopped %s (%s)\n", projectLabel(out.Stopped.ProjectID, out.Stopped.ProjectName), formatDuration(*out.Stopped.Duration))
	}
	_, _ = fmt.Fprintf(w, "Started %s at %s\n", projectLabel(out.Started.ProjectID, out.Started.ProjectName), out.Started.StartTime.In(time.Local).Format("15:04:05"))
	if out.Started.RemoteID == "" {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Warning: server not reachable; tracking locally")
	}
	return nil
}

// newStopCommand creates the stop command.
func newStopCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running timer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := c.StopTimerUseCase().Execute(cmd.Context(), usecase.StopTimerInput{})
			if err != nil {
				return err
			}
			if out.Stopped == nil {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No timer running")
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stopped %s (%s)\n", projectLabel(out.Stopped.ProjectID, out.Stopped.ProjectName), formatDuration(*out.Stopped.Duration))
			return nil
		},
	}
}

// newStatusCommand creates the status command.
func newStatusCommand(c *app.Container) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running timer and tracked totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			view := newStatusView(c, c.Clock.Now())
			return render(cmd.OutOrStdout(), output, view, func(w io.Writer) error {
				return writeStatusText(w, view)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, json or yaml")
	return cmd
}

// statusView is the machine-readable form of the status command.
type statusView struct {
	Running    *runningView          `json:"running" yaml:"running"`
	Attendance *domain.Attendance    `json:"attendance,omitempty" yaml:"attendance,omitempty"`
	User       string                `json:"user,omitempty" yaml:"user,omitempty"`
	Totals     []domain.ProjectTotal `json:"totals" yaml:"totals"`
	LoggedIn   bool                  `json:"loggedIn" yaml:"logged_in"`
}

type runningView struct {
	StartTime   time.Time     `json:"startTime" yaml:"start_time"`
	ProjectID   string        `json:"projectId" yaml:"project_id"`
	ProjectName string        `json:"projectName" yaml:"project_name"`
	RemoteID    string        `json:"remoteId,omitempty" yaml:"remote_id,omitempty"`
	Elapsed     time.Duration `json:"elapsed" yaml:"elapsed"`
}

func newStatusView(c *app.Container, now time.Time) statusView {
	v := statusView{
		LoggedIn: c.Credentials.IsLoggedIn(),
		Totals:   c.Timer.Totals(),
	}
	if cred := c.Credentials.Get(); cred != nil {
		v.User = cred.Email
	}
	if r := c.Timer.Running(); r != nil {
		v.Running = &runningView{
			StartTime:   r.StartTime,
			ProjectID:   r.ProjectID,
			ProjectName: r.ProjectName,
			RemoteID:    r.RemoteID,
			Elapsed:     r.Elapsed(now),
		}
	}
	if a := c.Timer.Attendance(); !a.At.IsZero() {
		v.Attendance = &a
	}
	if v.Totals == nil {
		v.Totals = []domain.ProjectTotal{}
	}
	return v
}

func writeStatusText(w io.Writer, v statusView) error {
	if v.LoggedIn {
		_, _ = fmt.Fprintf(w, "Signed in as %s\n", v.User)
	} else {
		_, _ = fmt.Fprintln(w, "Not signed in")
	}
	if v.Running != nil {
		_, _ = fmt.Fprintf(w, "Running: %s for %s\n", projectLabel(v.Running.ProjectID, v.Running.ProjectName), formatDuration(v.Running.Elapsed))
	} else {
		_, _ = fmt.Fprintln(w, "Running: none")
	}
	if v.Attendance != nil {
		state := "checked out"
		if v.Attendance.CheckedIn {
			state = "checked in"
		}
		_, _ = fmt.Fprintf(w, "Attendance: %s since %s\n", state, v.Attendance.At.In(time.Local).Format("15:04"))
	}
	if len(v.Totals) == 0 {
		return nil
	}
	_, _ = fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PROJECT\tTOTAL")
	for _, t := range v.Totals {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", projectLabel(t.ProjectID, t.ProjectName), formatDuration(t.Total))
	}
	return tw.Flush()
}
