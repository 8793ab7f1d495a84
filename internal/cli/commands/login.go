package commands

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/agrisense-dev/agrisense/internal/guard"
	"github.com/agrisense-dev/agrisense/internal/session"
)

// NewLoginCmd creates the login command
func NewLoginCmd(envFn EnvFunc) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with an AgriSense server",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := envFn()
			if err != nil {
				return err
			}
			return runLogin(cmd, env, email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set AGRISENSE_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set AGRISENSE_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(cmd *cobra.Command, env *Env, email, password string) error {
	// Check for environment variables (useful for CI/CD)
	if email == "" {
		email = os.Getenv("AGRISENSE_EMAIL")
	}
	if password == "" {
		password = os.Getenv("AGRISENSE_PASSWORD")
	}

	if email == "" {
		return fmt.Errorf("email is required (use --email flag or AGRISENSE_EMAIL env var)")
	}

	out := cmd.OutOrStdout()

	if password == "" {
		if !term.IsTerminal(int(syscall.Stdin)) {
			return fmt.Errorf("password is required in non-interactive mode (use --password flag or AGRISENSE_PASSWORD env var)")
		}
		fmt.Fprint(out, "Password: ")
		bytePassword, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = string(bytePassword)
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "Logging in to %s...\n", env.Client.BaseURL())

	loginResp, err := env.Client.Login(cmd.Context(), email, password)
	if err != nil {
		return err
	}

	if err := session.SetSession(env.Store, loginResp.Token, loginResp.Role); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	env.Logger.Debug().Stringer("role", loginResp.Role).Msg("Session stored")

	fmt.Fprintln(out, "✓ Login successful!")
	fmt.Fprintf(out, "  User: %s (%s)\n", loginResp.User.Name, loginResp.User.Email)
	fmt.Fprintf(out, "  Role: %s\n", roleLabel(loginResp.Role))
	fmt.Fprintf(out, "  Home: %s\n", guard.HomeFor(loginResp.Role))

	return nil
}
