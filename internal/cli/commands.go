package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/taskclient/internal/api"
	"github.com/nhle/taskclient/internal/model"
	appsync "github.com/nhle/taskclient/internal/sync"
)

// errNotSignedIn is returned by commands that need a session.
var errNotSignedIn = errors.New("not signed in; run taskclient to log in")

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			if !rt.session.IsAuthenticated() {
				fmt.Fprintln(opts.out, "Not signed in.")
				return nil
			}
			if err := rt.session.Logout(context.Background()); err != nil {
				return err
			}
			fmt.Fprintln(opts.out, "Signed out.")
			return nil
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show who is signed in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			fmt.Fprintf(opts.out, "API:     %s\n", rt.cfg.API.BaseURL)
			fmt.Fprintf(opts.out, "Backend: %s\n", rt.cfg.Session.Backend)

			current, ok := rt.session.Current()
			if !ok {
				fmt.Fprintln(opts.out, "Session: not signed in")
				return nil
			}
			claims, _ := current.Claims()
			fmt.Fprintf(opts.out, "Session: signed in as %s\n", claims.Label())
			if !claims.ExpiresAt.IsZero() {
				state := "expires"
				if claims.Expired(time.Now()) {
					state = "expired"
				}
				fmt.Fprintf(opts.out, "Token:   %s %s\n", state, claims.ExpiresAt.Local().Format(time.RFC1123))
			}
			return nil
		},
	}
}

type exportOptions struct {
	filter string
	search string
	sort   string
	out    string
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var eo exportOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write tasks to a CSV file",
		Long: `Fetch the task list, apply the filter, search and sort, and write every
matching task (all pages) as CSV. Use --out - to write to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd, opts, eo)
		},
	}

	cmd.Flags().StringVar(&eo.filter, "filter", string(appsync.FilterAll), "status filter: all, completed or pending")
	cmd.Flags().StringVar(&eo.search, "search", "", "case-insensitive text to match in title or description")
	cmd.Flags().StringVar(&eo.sort, "sort", string(appsync.SortDefault), "sort key: default, titleAsc, titleDesc, dueAsc or dueDesc")
	cmd.Flags().StringVarP(&eo.out, "out", "o", "", "output file (default <export.dir>/tasks_<filter>.csv)")
	return cmd
}

func runExport(cmd *cobra.Command, opts *rootOptions, eo exportOptions) error {
	filter, err := appsync.ParseStatusFilter(eo.filter)
	if err != nil {
		return err
	}
	sortKey, err := appsync.ParseSortKey(eo.sort)
	if err != nil {
		return err
	}

	rt, err := bootstrap(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	if !rt.session.IsAuthenticated() {
		return errNotSignedIn
	}

	tasks, err := rt.client.ListTasks(cmd.Context())
	if err != nil {
		if api.IsAuthRequired(err) {
			if lerr := rt.session.Logout(context.Background()); lerr != nil {
				return lerr
			}
			return errNotSignedIn
		}
		return fmt.Errorf("%s: %w", appsync.MsgLoadFailed, err)
	}

	q := appsync.NewQuery(rt.cfg.Display.PageSize).
		WithStatus(filter).
		WithSearch(eo.search).
		WithSort(sortKey)
	matched := q.Filter(tasks)

	if eo.out == "-" {
		return appsync.ExportCSV(opts.out, matched)
	}

	path := eo.out
	if path == "" {
		path = filepath.Join(rt.cfg.Export.Dir, appsync.ExportFileName(filter))
	}
	if err := writeFile(path, matched); err != nil {
		return err
	}
	fmt.Fprintf(opts.out, "Exported %d tasks to %s\n", len(matched), path)
	return nil
}

func writeFile(path string, tasks []model.Task) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return appsync.ExportCSV(f, tasks)
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if _, err := os.Stat(opts.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", opts.configPath)
			}
			if err := model.SaveConfig(opts.configPath, model.DefaultAppConfig()); err != nil {
				return err
			}
			fmt.Fprintf(opts.out, "Wrote %s\n", opts.configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}
