package cli

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/taskclient/internal/app"
	"github.com/nhle/taskclient/internal/logger"
	"github.com/nhle/taskclient/internal/model"
)

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configPath string
	ephemeral  bool
	out        io.Writer
}

// NewRootCmd builds the taskclient command tree. Without a subcommand it
// runs the terminal UI.
func NewRootCmd(version string) *cobra.Command {
	opts := &rootOptions{out: os.Stdout}

	cmd := &cobra.Command{
		Use:   "taskclient",
		Short: "Terminal client for the Task API",
		Long: `taskclient signs in to a Task API and manages your tasks from the terminal.

Run it without arguments to open the interactive UI.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, opts)
		},
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			opts.out = cmd.OutOrStdout()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", model.DefaultConfigPath(), "path to config.yaml")
	cmd.PersistentFlags().BoolVar(&opts.ephemeral, "ephemeral", false, "keep the session in memory only")

	cmd.AddCommand(
		newLogoutCmd(opts),
		newStatusCmd(opts),
		newExportCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}

// Execute runs the root command.
func Execute(version string) error {
	if err := NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func runTUI(cmd *cobra.Command, opts *rootOptions) error {
	rt, err := bootstrap(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	syncLog := logger.GetSyncLogger()
	m := app.New(app.Deps{
		Session: rt.session,
		Client:  rt.client,
		Prefs:   rt.state,
		Config:  rt.cfg,
		Log:     logger.GetTUILogger(),
		SyncLog: &syncLog,
	})

	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run(); err != nil {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}
