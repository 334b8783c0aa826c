package listview

import (
	"fmt"
	"sync"
	"time"
)

// Mode is what a list surface should render for a given state.
type Mode int

const (
	// ModeTable renders the rows normally.
	ModeTable Mode = iota
	// ModeLoading renders the current (possibly stale) rows with a
	// non-blocking loading indicator.
	ModeLoading
	// ModeError replaces the rows with an error panel.
	ModeError
)

func (m Mode) String() string {
	switch m {
	case ModeTable:
		return "table"
	case ModeLoading:
		return "loading"
	case ModeError:
		return "error"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// MarshalText renders the mode by name in JSON payloads.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ModeOf derives the render mode from a state. An error wins over loading.
func ModeOf[T any](s State[T]) Mode {
	switch {
	case s.Err != "":
		return ModeError
	case s.Loading:
		return ModeLoading
	default:
		return ModeTable
	}
}

// ViewConfig tunes how a View turns gestures into params.
type ViewConfig struct {
	// SearchFilter derives the filter expression for a search text. An empty
	// result clears the filter. When nil the text itself is used.
	SearchFilter func(text string) string
	// SearchDelay is the debounce window for search input. Zero applies
	// every keystroke immediately; callers normally pass DefaultDebounce.
	SearchDelay time.Duration
}

// View binds user gestures on one list surface to a Controller. It never
// touches params or state directly; everything goes through UpdateParams.
type View[T any] struct {
	ctl    *Controller[T]
	cfg    ViewConfig
	search *Debounced[string]

	mu   sync.Mutex
	text string
}

// NewView returns a View driving ctl.
func NewView[T any](ctl *Controller[T], cfg ViewConfig) *View[T] {
	v := &View[T]{ctl: ctl, cfg: cfg}
	if cfg.SearchDelay > 0 {
		v.search = Debounce(v.applySearch, cfg.SearchDelay)
	}
	return v
}

// Controller returns the controller behind the view.
func (v *View[T]) Controller() *Controller[T] {
	return v.ctl
}

// ClickSort handles a click on the header of field.
func (v *View[T]) ClickSort(field string) {
	current := v.ctl.Params().OrderBy
	v.ctl.UpdateParams(Patch{OrderBy: Ptr(ToggleSort(current, field))})
}

// Search records the typed text right away and schedules the matching filter
// update.
func (v *View[T]) Search(text string) {
	v.mu.Lock()
	v.text = text
	v.mu.Unlock()

	if v.search == nil {
		v.applySearch(text)
		return
	}
	v.search.Call(text)
}

// FlushSearch applies a pending debounced search now.
func (v *View[T]) FlushSearch() {
	if v.search != nil {
		v.search.Flush()
	}
}

// SearchText returns the text last passed to Search.
func (v *View[T]) SearchText() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.text
}

// ClickPage jumps to a 1-based page.
func (v *View[T]) ClickPage(page int) {
	limit := v.ctl.Params().Limit
	v.ctl.UpdateParams(Patch{Offset: Ptr(PageOffset(page, limit))})
}

// NextPage moves forward one page unless already on the last one.
func (v *View[T]) NextPage() {
	if page := v.Page(); page < v.Pages() {
		v.ClickPage(page + 1)
	}
}

// PrevPage moves back one page unless already on the first one.
func (v *View[T]) PrevPage() {
	if page := v.Page(); page > 1 {
		v.ClickPage(page - 1)
	}
}

// SelectRow returns the already fetched record at index i of the current
// page. No fetch is made.
func (v *View[T]) SelectRow(i int) (T, bool) {
	items := v.ctl.State().Items
	if i < 0 || i >= len(items) {
		var zero T
		return zero, false
	}
	return items[i], true
}

// Mode reports what should be rendered right now.
func (v *View[T]) Mode() Mode {
	return ModeOf(v.ctl.State())
}

// Page returns the current 1-based page.
func (v *View[T]) Page() int {
	return v.ctl.Params().Page()
}

// Pages returns the number of pages for the last known total.
func (v *View[T]) Pages() int {
	snap := v.ctl.Snapshot()
	return PageCount(snap.State.Total, snap.Params.Limit)
}

// Close drops any pending search. The controller is left running.
func (v *View[T]) Close() {
	if v.search != nil {
		v.search.Cancel()
	}
}

func (v *View[T]) applySearch(text string) {
	filter := text
	if v.cfg.SearchFilter != nil {
		filter = v.cfg.SearchFilter(text)
	}
	v.ctl.UpdateParams(Patch{Filter: Ptr(filter), Offset: Ptr(0)})
}
