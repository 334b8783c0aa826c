package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/smartgistics/fleetmate-sub000/internal/backend"
	"github.com/smartgistics/fleetmate-sub000/internal/browse"
	"github.com/smartgistics/fleetmate-sub000/internal/listview"
	"github.com/smartgistics/fleetmate-sub000/internal/logger"
	"github.com/smartgistics/fleetmate-sub000/internal/model"
)

// listFlags are the query flags shared by list and browse.
type listFlags struct {
	filter string
	search string
	order  string
	fields string
	expand string
	limit  int
	offset int
	page   int
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.filter, "filter", "", "OData filter, replaces the entity's default filter")
	cmd.Flags().StringVarP(&f.search, "search", "s", "", "Free text matched against the entity's search fields")
	cmd.Flags().StringVar(&f.order, "order", "", "Sort as 'field asc|desc'")
	cmd.Flags().StringVar(&f.fields, "fields", "", "Comma-separated fields to return")
	cmd.Flags().StringVar(&f.expand, "expand", "", "Comma-separated related collections to expand")
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 0, "Page size (default 20)")
	cmd.Flags().IntVar(&f.offset, "offset", 0, "Records to skip")
	cmd.Flags().IntVar(&f.page, "page", 0, "1-based page, used when --offset is not given")
}

func (f *listFlags) query() backend.Query {
	return backend.Query{
		Filter: f.filter,
		Search: f.search,
		Order:  f.order,
		Fields: f.fields,
		Expand: f.expand,
		Limit:  f.limit,
		Offset: f.offset,
		Page:   f.page,
	}
}

func newListCmd() *cobra.Command {
	var (
		flags      listFlags
		jsonOutput bool
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "list <entity>",
		Short: "Fetch one page of an entity",
		Long: `Fetch one page of customers, carriers, orders, trips or shipments. Sorting,
filtering and paging are applied by TruckMate; the page is printed as a table or JSON.`,
		Example: `  fleetmate list orders
  fleetmate list customers --search acme --order "name desc" --page 2
  fleetmate list trips --filter "status eq 'DISP'" --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.OutOrStdout(), args[0], flags.query(), jsonOutput, timeout)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the page as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Give up after this long")

	return cmd
}

func runList(w io.Writer, entityName string, q backend.Query, jsonOutput bool, timeout time.Duration) error {
	e, err := lookupEntity(entityName)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	b, err := openBackend(cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	params, err := q.Params(e)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	fetch := backend.Fetcher[model.Record](b, e)
	snap, err := fetchOnce(ctx, fetch, params, logger.Named(log, "list"))
	if err != nil {
		return fmt.Errorf("list %s: %w", e.Name, err)
	}

	if jsonOutput {
		return writeListJSON(w, e, snap)
	}
	return writeListTable(w, e, snap)
}

// fetchOnce runs a list controller for a single fetch and returns its
// settled snapshot.
func fetchOnce(ctx context.Context, fetch listview.FetchFunc[model.Record], params listview.Params, log zerolog.Logger) (listview.Snapshot[model.Record], error) {
	bound := func(fctx context.Context, p listview.Params) (listview.Page[model.Record], error) {
		fctx, cancel := context.WithCancel(fctx)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
		return fetch(fctx, p)
	}
	ctl := listview.New(bound, params.Patch(), listview.WithLogger(log))
	defer ctl.Close()

	ctl.Start()
	ctl.Wait()
	if err := ctl.Err(); err != nil {
		return listview.Snapshot[model.Record]{}, err
	}
	return ctl.Snapshot(), nil
}

type listOutput struct {
	Entity string         `json:"entity"`
	Items  []model.Record `json:"items"`
	Meta   listMeta       `json:"meta"`
}

type listMeta struct {
	Total   int    `json:"total"`
	Count   int    `json:"count"`
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
	Page    int    `json:"page"`
	Pages   int    `json:"pages"`
	OrderBy string `json:"order_by,omitempty"`
	Filter  string `json:"filter,omitempty"`
}

func writeListJSON(w io.Writer, e model.Entity, snap listview.Snapshot[model.Record]) error {
	items := snap.State.Items
	if items == nil {
		items = []model.Record{}
	}
	out := listOutput{
		Entity: e.Name,
		Items:  items,
		Meta: listMeta{
			Total:   snap.State.Total,
			Count:   len(items),
			Limit:   snap.Params.Limit,
			Offset:  snap.Params.Offset,
			Page:    snap.Params.Page(),
			Pages:   listview.PageCount(snap.State.Total, snap.Params.Limit),
			OrderBy: snap.Params.OrderBy,
			Filter:  snap.Params.Filter,
		},
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// listColumns returns the selected fields, or the entity's table columns.
func listColumns(e model.Entity, p listview.Params) []model.Field {
	names := p.Select
	if len(names) == 0 {
		names = e.Columns
	}
	cols := make([]model.Field, 0, len(names))
	for _, name := range names {
		if f, ok := e.Field(name); ok {
			cols = append(cols, f)
		} else {
			cols = append(cols, model.Field{Name: name})
		}
	}
	return cols
}

func writeListTable(w io.Writer, e model.Entity, snap listview.Snapshot[model.Record]) error {
	items := snap.State.Items
	if len(items) == 0 {
		_, err := fmt.Fprintf(w, "No %s found.\n", strings.ToLower(e.Label))
		return err
	}

	cols := listColumns(e, snap.Params)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = strings.ToUpper(c.Name)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, rec := range items {
		row := make([]string, len(cols))
		for i, c := range cols {
			row[i] = browse.FormatValue(c, rec[c.Name])
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	pages := listview.PageCount(snap.State.Total, snap.Params.Limit)
	_, err := fmt.Fprintf(w, "\n%s %d-%d of %d (page %d/%d)\n",
		e.Label, snap.Params.Offset+1, snap.Params.Offset+len(items), snap.State.Total,
		snap.Params.Page(), pages)
	return err
}
