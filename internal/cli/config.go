package cli

import (
	"fmt"

	"github.com/runoshun/tracksync/internal/app"
	"github.com/runoshun/tracksync/internal/infra/config"
	"github.com/runoshun/tracksync/internal/usecase"
	"github.com/spf13/cobra"
)

// newConfigCommand creates the config command.
func newConfigCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Manage configuration",
		Long:        `Manage the tracksync configuration file and settings.`,
		Annotations: map[string]string{skipPrepare: "true"},
		// No RunE: shows subcommand list when called without arguments
	}

	cmd.AddCommand(newConfigShowCommand(c))
	cmd.AddCommand(newConfigInitCommand(c))

	return cmd
}

// newConfigShowCommand creates the config show subcommand.
func newConfigShowCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:         "show",
		Short:       "Display effective configuration",
		Long:        `Display the configuration file location and the effective configuration after applying TRACKSYNC_* overrides.`,
		Annotations: map[string]string{skipPrepare: "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := c.ShowConfigUseCase().Execute(cmd.Context(), usecase.ShowConfigInput{})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(w, "[Loaded from]")
			if out.ConfigFile.Exists {
				_, _ = fmt.Fprintf(w, "- %s\n", out.ConfigFile.Path)
			} else {
				_, _ = fmt.Fprintf(w, "- %s (not found)\n", out.ConfigFile.Path)
			}
			_, _ = fmt.Fprintln(w)

			_, _ = fmt.Fprintln(w, "[Effective Config]")
			text, err := config.Render(out.EffectiveConfig)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprint(w, text)
			return nil
		},
	}
}

// newConfigInitCommand creates the config init subcommand.
func newConfigInitCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:         "init",
		Short:       "Create a configuration file with default values",
		Annotations: map[string]string{skipPrepare: "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := c.InitConfigUseCase().Execute(cmd.Context(), usecase.InitConfigInput{})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created config file: %s\n", out.Path)
			return nil
		},
	}
}
