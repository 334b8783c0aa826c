package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/smartgistics/fleetmate-sub000/internal/backend"
	"github.com/smartgistics/fleetmate-sub000/internal/browse"
	"github.com/smartgistics/fleetmate-sub000/internal/config"
	"github.com/smartgistics/fleetmate-sub000/internal/listview"
	"github.com/smartgistics/fleetmate-sub000/internal/logger"
	"github.com/smartgistics/fleetmate-sub000/internal/model"
)

func newBrowseCmd() *cobra.Command {
	var (
		flags       listFlags
		searchDelay time.Duration
		logFile     string
	)

	cmd := &cobra.Command{
		Use:   "browse <entity>",
		Short: "Browse an entity interactively in the terminal",
		Long: `Open a full-screen list of an entity. Keys:

  n / p      next / previous page
  j / k      move the cursor
  1-9        sort by column, again to reverse
  /          search (applied after a short pause)
  enter      show the selected record
  r          reload
  q          quit`,
		Example: `  fleetmate browse orders --demo
  fleetmate browse customers --order "name asc" --limit 15`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(args[0], flags.query(), searchDelay, logFile)
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&searchDelay, "search-delay", listview.DefaultDebounce, "Pause after typing before a search is sent")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to this file (logs are discarded by default)")

	return cmd
}

func runBrowse(entityName string, q backend.Query, searchDelay time.Duration, logFile string) error {
	e, err := lookupEntity(entityName)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, closeLog, err := browseLogger(cfg, logFile)
	if err != nil {
		return err
	}
	defer closeLog()

	b, err := openBackend(cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	params, err := q.Params(e)
	if err != nil {
		return err
	}
	// Searches typed in the browser replace the --search term but keep the
	// filter it was combined with.
	q.Search = ""
	base, err := q.Params(e)
	if err != nil {
		return err
	}

	ctl := listview.New(
		backend.Fetcher[model.Record](b, e),
		params.Patch(),
		listview.WithLogger(logger.Named(log, "list")),
	)
	defer ctl.Close()

	view := listview.NewView(ctl, listview.ViewConfig{
		SearchFilter: backend.SearchFilter(e, base.Filter),
		SearchDelay:  searchDelay,
	})
	defer view.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = browse.RunTerminal(ctx, browse.New(e, view, os.Stdout), os.Stdin)
	if errors.Is(err, browse.ErrNotTerminal) {
		return fmt.Errorf("%w; use 'fleetmate list %s' instead", err, e.Name)
	}
	return err
}

// browseLogger keeps logs off the screen: they go to path when given and
// are dropped otherwise.
func browseLogger(cfg *config.Config, path string) (zerolog.Logger, func(), error) {
	if path == "" {
		return zerolog.Nop(), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}
	log := logger.New(logger.Options{
		Level:   cfg.Log.Level,
		Format:  "json",
		Service: "fleetmate",
		Writer:  f,
	})
	return log, func() { f.Close() }, nil
}
