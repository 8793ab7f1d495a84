package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agrisense-dev/agrisense/internal/cli/client"
	"github.com/agrisense-dev/agrisense/internal/guard"
	"github.com/agrisense-dev/agrisense/internal/session"
)

// NewUsersCmd creates the users command group (admin only)
func NewUsersCmd(envFn EnvFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts (admin only)",
	}

	cmd.AddCommand(newUsersListCmd(envFn))
	cmd.AddCommand(newUsersCreateCmd(envFn))
	cmd.AddCommand(newUsersUpdateCmd(envFn))
	cmd.AddCommand(newUsersDeleteCmd(envFn))

	return cmd
}

// adminEnv resolves the environment and refuses early when the stored
// session cannot pass the admin guard. The server enforces the same rule.
func adminEnv(envFn EnvFunc) (*Env, error) {
	env, err := envFn()
	if err != nil {
		return nil, err
	}

	d := guard.Evaluate(guard.Admin, env.currentSession())
	switch d.Outcome {
	case guard.RedirectLogin:
		return nil, client.ErrNotAuthenticated
	case guard.Forbidden:
		return nil, client.ErrForbidden
	}
	return env, nil
}

func newUsersListCmd(envFn EnvFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all users",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := adminEnv(envFn)
			if err != nil {
				return err
			}

			users, err := env.Client.ListUsers(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(users) == 0 {
				fmt.Fprintln(out, "No users found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tEMAIL\tNAME\tROLE\tCREATED")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Name, u.Role, u.CreatedAt.Format("2006-01-02"))
			}
			return w.Flush()
		},
	}
}

func newUsersCreateCmd(envFn EnvFunc) *cobra.Command {
	var req client.CreateUserRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if session.ParseRole(req.Role) == session.RoleNone {
				return fmt.Errorf("invalid role %q, must be one of: %s, %s", req.Role, session.RoleUser, session.RoleAdmin)
			}

			env, err := adminEnv(envFn)
			if err != nil {
				return err
			}

			user, err := env.Client.CreateUser(cmd.Context(), req)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Created %s (%s) with role %s\n", user.Email, user.ID, user.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&req.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&req.Password, "password", "", "Initial password (min 8 characters)")
	cmd.Flags().StringVar(&req.Role, "role", session.RoleUser.String(), "Role: user or admin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newUsersUpdateCmd(envFn EnvFunc) *cobra.Command {
	var req client.UpdateUserRequest

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a user's email, name, password or role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if req == (client.UpdateUserRequest{}) {
				return fmt.Errorf("nothing to update (use --email, --name, --password or --role)")
			}
			if req.Role != "" && session.ParseRole(req.Role) == session.RoleNone {
				return fmt.Errorf("invalid role %q, must be one of: %s, %s", req.Role, session.RoleUser, session.RoleAdmin)
			}

			env, err := adminEnv(envFn)
			if err != nil {
				return err
			}

			user, err := env.Client.UpdateUser(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Updated %s (%s), role %s\n", user.Email, user.ID, user.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "New email address")
	cmd.Flags().StringVar(&req.Name, "name", "", "New display name")
	cmd.Flags().StringVar(&req.Password, "password", "", "New password (min 8 characters)")
	cmd.Flags().StringVar(&req.Role, "role", "", "New role: user or admin")

	return cmd
}

func newUsersDeleteCmd(envFn EnvFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := adminEnv(envFn)
			if err != nil {
				return err
			}

			if err := env.Client.DeleteUser(cmd.Context(), args[0]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted user %s\n", args[0])
			return nil
		},
	}
}
