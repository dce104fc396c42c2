package cli

import (
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"coopsched/internal/tui"
)

// defaultServer returns the server URL, checking COOPSCHED_SERVER first.
func defaultServer() string {
	if s := os.Getenv("COOPSCHED_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

func newWatchCmd() *cobra.Command {
	var (
		serverURL string
		refresh   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show live queue depths of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := tui.NewApp(tui.HTTPStats(serverURL, nil), serverURL, tui.WithRefresh(refresh))
			p := tea.NewProgram(app,
				tea.WithAltScreen(),
				tea.WithContext(cmd.Context()),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			)
			_, err := p.Run()
			return err
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", defaultServer(), "coopsched server URL (or COOPSCHED_SERVER env)")
	cmd.Flags().DurationVar(&refresh, "refresh", time.Second, "Polling interval")

	return cmd
}
