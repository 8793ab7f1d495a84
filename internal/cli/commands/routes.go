package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agrisense-dev/agrisense/internal/guard"
)

// NewRoutesCmd creates the routes command
func NewRoutesCmd(envFn EnvFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List declared routes and whether the current session may enter them",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := envFn()
			if err != nil {
				return err
			}

			s := env.currentSession()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PATH\tREQUIRES\tDECISION")
			for _, r := range guard.DefaultTable.Routes() {
				d := guard.DefaultTable.Navigate(r.Path, s)
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.Path, r.Requires, describeDecision(d))
			}
			return w.Flush()
		},
	}
}

func describeDecision(d guard.Decision) string {
	if d.Redirect == "" {
		return d.Outcome.String()
	}
	return fmt.Sprintf("%s → %s", d.Outcome, d.Redirect)
}
