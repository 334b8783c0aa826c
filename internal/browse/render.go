// Package browse is a terminal front end for a list controller: a paged,
// sortable, searchable table of one entity with a detail pane.
package browse

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/smartgistics/fleetmate-sub000/internal/listview"
	"github.com/smartgistics/fleetmate-sub000/internal/model"
)

const (
	maxColumnWidth = 28
	defaultWidth   = 120
	lineBreak      = "\r\n" // the terminal is in raw mode
)

// helpLine lists the key bindings.
const helpLine = "n/p page  1-9 sort  / search  j/k move  enter detail  r refresh  q quit"

// Frame is everything one screen shows.
type Frame struct {
	Entity    model.Entity
	Snapshot  listview.Snapshot[model.Record]
	Cursor    int
	Search    string
	Searching bool
	Detail    model.Record // shown instead of the table when non-nil
	Width     int
	Status    string
}

// Render draws f as text. It has no side effects.
func Render(f Frame) string {
	width := f.Width
	if width <= 0 {
		width = defaultWidth
	}
	snap := f.Snapshot
	st := snap.State

	var lines []string
	add := func(s string) { lines = append(lines, clip(s, width)) }

	header := fmt.Sprintf("%s | page %d/%d | %d records", f.Entity.Label,
		snap.Params.Page(), max(listview.PageCount(st.Total, snap.Params.Limit), 1), st.Total)
	if snap.Params.OrderBy != "" {
		header += " | sort: " + snap.Params.OrderBy
	}
	add(header)

	switch {
	case f.Searching:
		add("search: " + f.Search + "_")
	case f.Search != "":
		add("search: " + f.Search)
	case snap.Params.Filter != "":
		add("filter: " + snap.Params.Filter)
	default:
		add("")
	}
	add("")

	if f.Detail != nil {
		for _, l := range renderDetail(f.Entity, f.Detail) {
			add(l)
		}
		add("")
		add("esc back  q quit")
		return strings.Join(lines, lineBreak) + lineBreak
	}

	switch listview.ModeOf(st) {
	case listview.ModeError:
		add("error: " + st.Err)
		add("")
		add("r retry")
	case listview.ModeLoading:
		if len(st.Items) == 0 {
			add("loading...")
			break
		}
		for _, l := range renderTable(f.Entity, snap, f.Cursor) {
			add(l)
		}
		add("loading...")
	default:
		if len(st.Items) == 0 {
			add("no records")
			break
		}
		for _, l := range renderTable(f.Entity, snap, f.Cursor) {
			add(l)
		}
	}

	add("")
	if f.Status != "" {
		add(f.Status)
	}
	add(helpLine)
	return strings.Join(lines, lineBreak) + lineBreak
}

func renderTable(e model.Entity, snap listview.Snapshot[model.Record], cursor int) []string {
	cols := e.Columns
	sortField, sortDir, _ := listview.ParseOrderBy(snap.Params.OrderBy)

	headers := make([]string, len(cols))
	widths := make([]int, len(cols))
	for i, name := range cols {
		label := name
		if f, ok := e.Field(name); ok {
			label = f.Label
		}
		if i < 9 {
			label = fmt.Sprintf("%d:%s", i+1, label)
		}
		if name == sortField {
			if sortDir == listview.Desc {
				label += " v"
			} else {
				label += " ^"
			}
		}
		headers[i] = label
		widths[i] = utf8.RuneCountInString(label)
	}

	cells := make([][]string, len(snap.State.Items))
	for r, rec := range snap.State.Items {
		cells[r] = make([]string, len(cols))
		for i, name := range cols {
			f, _ := e.Field(name)
			v := FormatValue(f, rec[name])
			cells[r][i] = v
			widths[i] = max(widths[i], utf8.RuneCountInString(v))
		}
	}
	for i := range widths {
		widths[i] = min(widths[i], maxColumnWidth)
	}

	lines := make([]string, 0, len(cells)+2)
	lines = append(lines, "  "+row(headers, widths))
	sep := make([]string, len(cols))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	lines = append(lines, "  "+row(sep, widths))
	for r, c := range cells {
		prefix := "  "
		if r == cursor {
			prefix = "> "
		}
		lines = append(lines, prefix+row(c, widths))
	}
	return lines
}

func renderDetail(e model.Entity, rec model.Record) []string {
	labelWidth := 0
	for _, f := range e.Fields {
		labelWidth = max(labelWidth, utf8.RuneCountInString(f.Label))
	}
	lines := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		v, ok := rec[f.Name]
		if !ok {
			continue
		}
		lines = append(lines, pad(f.Label, labelWidth)+"  "+FormatValue(f, v))
	}
	return lines
}

func row(cells []string, widths []int) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = pad(clip(c, widths[i]), widths[i])
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}

// FormatValue renders a record value for a cell. Decimal fields get two
// places; dates keep their calendar day.
func FormatValue(f model.Field, v any) string {
	if v == nil {
		return ""
	}
	s := fmt.Sprint(v)
	switch f.Type {
	case model.FieldDecimal:
		if d, err := decimal.NewFromString(s); err == nil {
			return d.StringFixed(2)
		}
	case model.FieldDate:
		if len(s) >= 10 && s[4] == '-' && s[7] == '-' {
			return s[:10]
		}
	case model.FieldBoolean:
		if b, ok := v.(bool); ok {
			if b {
				return "yes"
			}
			return "no"
		}
	}
	return s
}

func clip(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	if width <= 1 {
		return string([]rune(s)[:width])
	}
	return string([]rune(s)[:width-1]) + "~"
}

func pad(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
