package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agrisense-dev/agrisense/internal/cli/commands"
	"github.com/agrisense-dev/agrisense/internal/cli/userconfig"
	"github.com/agrisense-dev/agrisense/internal/logger"
)

var version = "dev" // Will be set during build

var (
	serverFlag string
	debugFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "agrisense",
	Short: "AgriSense - Farm monitoring dashboard CLI",
	Long: `AgriSense CLI - Sign in to an AgriSense server and explore the dashboard.

The CLI keeps one session per server and applies the same route rules as
the web dashboard, so you can check what your role may open.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// resolveEnv builds the command environment from the user config and the
// persistent flags. The --server flag wins over the configured server.
func resolveEnv() (*commands.Env, error) {
	cfg, err := userconfig.Load()
	if err != nil {
		return nil, err
	}

	serverURL := cfg.ServerURL
	if serverFlag != "" {
		serverURL = serverFlag
	}
	if serverURL, err = userconfig.NormalizeServerURL(serverURL); err != nil {
		return nil, err
	}

	store, err := cfg.OpenStore(serverURL)
	if err != nil {
		return nil, err
	}

	log := zerolog.Nop()
	if debugFlag {
		log = logger.New(os.Stderr, "debug", "console")
	}

	return commands.NewEnv(serverURL, store, log), nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "AgriSense server URL (overrides the configured server)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Log requests to stderr")

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agrisense version %s\n", version)
		},
	})

	// Add all subcommands
	rootCmd.AddCommand(commands.NewLoginCmd(resolveEnv))
	rootCmd.AddCommand(commands.NewLogoutCmd(resolveEnv))
	rootCmd.AddCommand(commands.NewWhoamiCmd(resolveEnv))
	rootCmd.AddCommand(commands.NewMenuCmd(resolveEnv))
	rootCmd.AddCommand(commands.NewOpenCmd(resolveEnv))
	rootCmd.AddCommand(commands.NewRoutesCmd(resolveEnv))
	rootCmd.AddCommand(commands.NewUsersCmd(resolveEnv))
	rootCmd.AddCommand(commands.NewUseServerCmd())
}

// Execute runs the root command
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
