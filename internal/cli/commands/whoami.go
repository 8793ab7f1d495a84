package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd(envFn EnvFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := envFn()
			if err != nil {
				return err
			}

			user, err := env.Client.Me(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", user.Name, user.Email)
			fmt.Fprintf(out, "Role:   %s\n", roleLabel(user.Role))
			fmt.Fprintf(out, "Server: %s\n", env.ServerURL)
			return nil
		},
	}
}
