package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agrisense-dev/agrisense/internal/cli/client"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd(envFn EnvFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := envFn()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if !env.currentSession().Authenticated() {
				fmt.Fprintln(out, "Not logged in.")
				return nil
			}

			// Tokens are stateless; telling the server is best effort.
			if err := env.Client.Logout(cmd.Context()); err != nil && !errors.Is(err, client.ErrSessionExpired) {
				env.Logger.Debug().Err(err).Msg("Server logout failed")
			}

			if err := env.Store.Clear(); err != nil {
				return fmt.Errorf("failed to clear session: %w", err)
			}

			fmt.Fprintln(out, "✓ Logged out.")
			return nil
		},
	}
}
