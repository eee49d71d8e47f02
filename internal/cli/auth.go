package cli

import (
	"fmt"

	"github.com/runoshun/tracksync/internal/app"
	"github.com/runoshun/tracksync/internal/usecase"
	"github.com/spf13/cobra"
)

// newLoginCommand creates the login command.
func newLoginCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "login <email>",
		Short: "Request a one-time password",
		Long: `Request a one-time password for the given address.

The password is sent by email; complete the login with
'tracksync verify <otp>'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.RequestLoginUseCase().Execute(cmd.Context(), usecase.RequestLoginInput{Email: args[0]})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "One-time password sent to %s\n", out.Email)
			return nil
		},
	}
}

// newVerifyCommand creates the verify command.
func newVerifyCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <otp>",
		Short: "Complete the login with the one-time password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.VerifyLoginUseCase().Execute(cmd.Context(), usecase.VerifyLoginInput{OTP: args[0]})
			if err != nil {
				return err
			}
			name := out.Credential.Name
			if name == "" {
				name = out.Credential.Email
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", name)
			return nil
		},
	}
}

// newLogoutCommand creates the logout command.
func newLogoutCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and stop the running timer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := c.LogoutUseCase().Execute(cmd.Context(), usecase.LogoutInput{})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if out.Stopped != nil {
				_, _ = fmt.Fprintf(w, "Stopped %s (%s)\n", projectLabel(out.Stopped.ProjectID, out.Stopped.ProjectName), formatDuration(*out.Stopped.Duration))
			}
			if !out.ServerNotified {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Warning: server could not be notified; signed out locally")
			}
			_, _ = fmt.Fprintln(w, "Logged out")
			return nil
		},
	}
}

// newWhoamiCommand creates the whoami command.
func newWhoamiCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireLogin(c); err != nil {
				return err
			}
			cred := c.Credentials.Get()
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "User:   %s\n", cred.UserID)
			_, _ = fmt.Fprintf(w, "Email:  %s\n", cred.Email)
			if cred.Name != "" {
				_, _ = fmt.Fprintf(w, "Name:   %s\n", cred.Name)
			}
			if cred.Role != "" {
				_, _ = fmt.Fprintf(w, "Role:   %s\n", cred.Role)
			}
			if exp, ok := cred.AccessTokenExpiry(); ok {
				_, _ = fmt.Fprintf(w, "Token:  expires %s\n", exp.In(c.Clock.Now().Location()).Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}
