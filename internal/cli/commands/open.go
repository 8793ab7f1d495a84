package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agrisense-dev/agrisense/internal/guard"
)

// NavigationDeniedError is returned when the guard does not let the session in.
type NavigationDeniedError struct {
	Path     string
	Decision guard.Decision
}

func (e *NavigationDeniedError) Error() string {
	return fmt.Sprintf("navigation to %s denied: %s (redirect to %s)", e.Path, e.Decision.Outcome, e.Decision.Redirect)
}

// NewOpenCmd creates the open command
func NewOpenCmd(envFn EnvFunc) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "open <path>",
		Short: "Check whether the current session may enter a route",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := envFn()
			if err != nil {
				return err
			}

			path := guard.NormalizePath(args[0])

			var decision guard.Decision
			if remote {
				resp, err := env.Client.Navigate(cmd.Context(), path)
				if err != nil {
					return err
				}
				decision = resp.Decision
			} else {
				decision = guard.DefaultTable.Navigate(path, env.currentSession())
			}

			out := cmd.OutOrStdout()
			switch decision.Outcome {
			case guard.Allow:
				if decision.Redirect != "" {
					fmt.Fprintf(out, "✓ %s → %s\n", path, decision.Redirect)
				} else {
					fmt.Fprintf(out, "✓ %s\n", path)
				}
				return nil
			case guard.RedirectLogin:
				fmt.Fprintf(out, "Login required, redirecting to %s\n", decision.Redirect)
			case guard.Forbidden:
				fmt.Fprintf(out, "Access denied, redirecting to %s\n", decision.Redirect)
			}

			return &NavigationDeniedError{Path: path, Decision: decision}
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Ask the server to evaluate the route")

	return cmd
}
