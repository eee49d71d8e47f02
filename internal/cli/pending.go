package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/runoshun/tracksync/internal/app"
	"github.com/runoshun/tracksync/internal/domain"
	"github.com/runoshun/tracksync/internal/usecase"
	"github.com/spf13/cobra"
)

// tolerateLoadError marks pending subcommands that still run when the
// pending entries cannot be fetched.
const tolerateLoadError = "tolerate-load-error"

// newPendingCommand creates the pending command.
func newPendingCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Report tasks for tracked time",
		Long: `Report tasks for time entries that have none yet.

Entries are grouped by project and calendar day. Every group needs at
least one task before 'tracksync pending submit' marks the entries
submitted.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.Prepare(); err != nil {
				return err
			}
			if err := requireLogin(c); err != nil {
				return err
			}
			err := c.Pending.Load(cmd.Context())
			if err != nil && cmd.Annotations[tolerateLoadError] != "" {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
				return nil
			}
			return err
		},
		// No RunE: shows subcommand list when called without arguments
	}

	cmd.AddCommand(newPendingListCommand(c))
	cmd.AddCommand(newPendingAddTaskCommand(c))
	cmd.AddCommand(newPendingSubmitCommand(c))
	cmd.AddCommand(newPendingSkipCommand(c))

	return cmd
}

// pendingGroupView is the machine-readable form of a pending group.
type pendingGroupView struct {
	Key         string   `json:"key" yaml:"key"`
	ProjectName string   `json:"projectName" yaml:"project_name"`
	Duration    string   `json:"duration" yaml:"duration"`
	EntryIDs    []string `json:"entryIds" yaml:"entry_ids"`
	Tasks       []string `json:"tasks" yaml:"tasks"`
	Complete    bool     `json:"complete" yaml:"complete"`
}

func newPendingListCommand(c *app.Container) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending entry groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			groups := c.Pending.Groups()
			views := make([]pendingGroupView, 0, len(groups))
			for _, g := range groups {
				v := pendingGroupView{
					Key:         g.Key.String(),
					ProjectName: g.ProjectName,
					Duration:    formatDuration(g.TotalDuration),
					EntryIDs:    g.AllEntryIDs,
					Tasks:       make([]string, 0, len(g.Tasks)),
					Complete:    g.HasTask(),
				}
				for _, t := range g.Tasks {
					v.Tasks = append(v.Tasks, t.TaskName)
				}
				views = append(views, v)
			}
			return render(cmd.OutOrStdout(), output, views, func(w io.Writer) error {
				return writePendingText(w, views, c.Pending.AllEntriesCompleted())
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, json or yaml")
	return cmd
}

func writePendingText(w io.Writer, views []pendingGroupView, allDone bool) error {
	if len(views) == 0 {
		_, _ = fmt.Fprintln(w, "No pending entries")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "GROUP\tPROJECT\tDURATION\tENTRIES\tTASKS")
	for _, v := range views {
		tasks := "-"
		if len(v.Tasks) > 0 {
			tasks = strings.Join(v.Tasks, ", ")
		} else if v.Complete {
			tasks = "(added)"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", v.Key, v.ProjectName, v.Duration, len(v.EntryIDs), tasks)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if allDone {
		_, _ = fmt.Fprintln(w, "\nAll groups have tasks; run 'tracksync pending submit'.")
	}
	return nil
}

func newPendingAddTaskCommand(c *app.Container) *cobra.Command {
	var opts struct {
		Name        string
		Description string
		Attachments []string
	}

	cmd := &cobra.Command{
		Use:   "add-task <project>@<day>",
		Short: "Add a task to a pending group",
		Example: `  tracksync pending add-task p1@2026-03-02 --name "Code review" --desc "PR #42"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := domain.ParseGroupKey(args[0])
			if err != nil {
				return err
			}
			err = c.Pending.AddTaskToEntry(cmd.Context(), key, domain.ReportTask{
				TaskName:        opts.Name,
				Description:     opts.Description,
				AttachmentPaths: opts.Attachments,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added task %q to %s\n", strings.TrimSpace(opts.Name), key)
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.Name, "name", "n", "", "Task name (required)")
	cmd.Flags().StringVarP(&opts.Description, "desc", "d", "", "Task description")
	cmd.Flags().StringArrayVar(&opts.Attachments, "attach", nil, "Attachment path (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newPendingSubmitCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "submit",
		Short: "Mark every pending entry submitted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := c.SubmitPendingUseCase().Execute(cmd.Context(), usecase.SubmitPendingInput{})
			if err != nil {
				if out != nil && out.Submitted > 0 {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%d entries submitted before the failure; run again to continue\n", out.Submitted)
				}
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Submitted %d entries\n", out.Submitted)
			return nil
		},
	}
}

func newPendingSkipCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:         "skip",
		Short:       "Dismiss the pending tasks for now",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{tolerateLoadError: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.Pending.Skip(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Pending tasks skipped")
			return nil
		},
	}
}
