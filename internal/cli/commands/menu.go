package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/agrisense-dev/agrisense/internal/menu"
	"github.com/agrisense-dev/agrisense/internal/session"
)

var (
	groupStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5FAF5F"))
	itemStyle     = lipgloss.NewStyle().PaddingLeft(2)
	urlStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	externalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5F87AF")).Italic(true)
)

// NewMenuCmd creates the menu command
func NewMenuCmd(envFn EnvFunc) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "menu",
		Short: "Show the navigation menu for the current session",
		Long: `Show the navigation menu for the current session.

By default the menu is built locally from the stored role. Use --remote to
ask the server, which resolves the role from its own user record.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := envFn()
			if err != nil {
				return err
			}

			role := env.currentSession().EffectiveRole()
			entries := menu.Build(role)

			if remote {
				resp, err := env.Client.Menu(cmd.Context())
				if err != nil {
					return err
				}
				role, entries = resp.Role, resp.Items
			}

			renderMenu(cmd.OutOrStdout(), role, entries)
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Fetch the menu from the server")

	return cmd
}

func renderMenu(w io.Writer, role session.Role, entries []menu.Entry) {
	fmt.Fprintf(w, "Menu for role: %s\n\n", roleLabel(role))

	for _, e := range entries {
		if e.Kind == menu.KindItem {
			fmt.Fprintln(w, renderItem(e))
			continue
		}
		fmt.Fprintln(w, groupStyle.Render(e.Title))
		for _, child := range e.Children {
			fmt.Fprintln(w, renderItem(child))
		}
		fmt.Fprintln(w)
	}
}

func renderItem(e menu.Entry) string {
	var b strings.Builder
	b.WriteString(e.Title)
	b.WriteString("  ")
	if e.External {
		b.WriteString(externalStyle.Render(e.URL + " ↗"))
	} else {
		b.WriteString(urlStyle.Render(e.URL))
	}
	return itemStyle.Render(b.String())
}
