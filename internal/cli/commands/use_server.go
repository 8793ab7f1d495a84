package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agrisense-dev/agrisense/internal/cli/userconfig"
)

// NewUseServerCmd creates the use-server command, which records the default
// server and session store in the user config.
func NewUseServerCmd() *cobra.Command {
	var store, sessionFile string

	cmd := &cobra.Command{
		Use:   "use-server <url>",
		Short: "Set the default AgriSense server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			serverURL, err := userconfig.NormalizeServerURL(args[0])
			if err != nil {
				return err
			}

			cfg, err := userconfig.Load()
			if err != nil {
				return err
			}

			cfg.ServerURL = serverURL
			if cmd.Flags().Changed("store") {
				cfg.SessionStore = store
			}
			if cmd.Flags().Changed("session-file") {
				cfg.SessionFile = sessionFile
			}

			// Fail before saving if the store setting is unusable.
			if _, err := cfg.OpenStore(serverURL); err != nil {
				return err
			}

			if err := userconfig.Save(cfg); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Using %s (session store: %s)\n", serverURL, storeName(cfg.SessionStore))
			return nil
		},
	}

	cmd.Flags().StringVar(&store, "store", userconfig.StoreKeyring, "Session store: keyring or file")
	cmd.Flags().StringVar(&sessionFile, "session-file", "", "Path of the session file when --store=file")

	return cmd
}

func storeName(s string) string {
	if s == "" {
		return userconfig.StoreKeyring
	}
	return s
}
