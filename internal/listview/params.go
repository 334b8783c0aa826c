// Package listview implements the server-paginated, server-sorted,
// server-filtered list controller shared by every FleetMate list surface.
//
// A Controller owns the query parameters of one list and the last page
// fetched for them. Views translate user gestures (sort header clicks,
// pagination, search keystrokes) into Patch values and hand them to the
// controller, which merges them, decides whether a new fetch is needed, and
// publishes the resulting state to subscribers.
package listview

import (
	"fmt"
	"slices"
	"strings"
)

// DefaultLimit is the page size used when none is given.
const DefaultLimit = 20

// Params is the query state of one list: paging, sorting, filtering and
// projection. It is a value type; Merge always returns a fresh copy.
type Params struct {
	Offset  int      `json:"offset"`
	Limit   int      `json:"limit"`
	OrderBy string   `json:"orderBy,omitempty"` // "<field> asc|desc"
	Filter  string   `json:"filter,omitempty"`  // opaque OData expression
	Select  []string `json:"select,omitempty"`
	Expand  []string `json:"expand,omitempty"`
}

// Patch is a partial Params. A nil field is left untouched by Merge.
type Patch struct {
	Offset  *int      `json:"offset,omitempty"`
	Limit   *int      `json:"limit,omitempty"`
	OrderBy *string   `json:"orderBy,omitempty"`
	Filter  *string   `json:"filter,omitempty"`
	Select  *[]string `json:"select,omitempty"`
	Expand  *[]string `json:"expand,omitempty"`
}

// Ptr returns a pointer to v. It keeps Patch literals short:
//
//	ctl.UpdateParams(listview.Patch{Offset: listview.Ptr(40)})
func Ptr[V any](v V) *V {
	return &v
}

// IsEmpty reports whether the patch touches no field.
func (p Patch) IsEmpty() bool {
	return p.Offset == nil && p.Limit == nil && p.OrderBy == nil &&
		p.Filter == nil && p.Select == nil && p.Expand == nil
}

// Default returns Params with offset 0 and the default page size, with the
// given overrides applied.
func Default(overrides Patch) Params {
	base := Params{Offset: 0, Limit: DefaultLimit}
	if overrides.IsEmpty() {
		return base
	}
	// An initial filter is not a filter change; keep an explicit start offset.
	p := Merge(base, overrides)
	if overrides.Offset != nil {
		p.Offset = max(*overrides.Offset, 0)
	}
	return p
}

// Merge applies patch over current and returns the result. current is never
// modified. Touching the filter always rewinds to the first page, whatever
// offset the patch carries: staying on page five of a different result set
// is never what the caller means. Select and Expand survive unless the patch
// replaces them.
func Merge(current Params, patch Patch) Params {
	next := current.clone()

	if patch.Limit != nil {
		next.Limit = *patch.Limit
	}
	if patch.OrderBy != nil {
		next.OrderBy = strings.TrimSpace(*patch.OrderBy)
	}
	if patch.Select != nil {
		next.Select = cloneStrings(*patch.Select)
	}
	if patch.Expand != nil {
		next.Expand = cloneStrings(*patch.Expand)
	}

	switch {
	case patch.Filter != nil:
		next.Filter = *patch.Filter
		next.Offset = 0
	case patch.Offset != nil:
		next.Offset = *patch.Offset
	}

	return next.normalize()
}

// Equal reports whether two Params describe the same request.
func (p Params) Equal(o Params) bool {
	return p.Offset == o.Offset &&
		p.Limit == o.Limit &&
		p.OrderBy == o.OrderBy &&
		p.Filter == o.Filter &&
		slices.Equal(p.Select, o.Select) &&
		slices.Equal(p.Expand, o.Expand)
}

// Validate checks the invariants that Merge does not enforce on its own:
// OrderBy must name exactly one field and one direction.
func (p Params) Validate() error {
	if p.Offset < 0 {
		return fmt.Errorf("offset must be >= 0, got %d", p.Offset)
	}
	if p.Limit <= 0 {
		return fmt.Errorf("limit must be > 0, got %d", p.Limit)
	}
	if p.OrderBy != "" {
		if _, _, err := ParseOrderBy(p.OrderBy); err != nil {
			return err
		}
	}
	return nil
}

// Page returns the 1-based page number for the current offset.
func (p Params) Page() int {
	if p.Limit <= 0 {
		return 1
	}
	return p.Offset/p.Limit + 1
}

// Patch returns a patch carrying every value of p, so that Default(p.Patch())
// reproduces p.
func (p Params) Patch() Patch {
	patch := Patch{
		Offset:  Ptr(p.Offset),
		Limit:   Ptr(p.Limit),
		OrderBy: Ptr(p.OrderBy),
		Filter:  Ptr(p.Filter),
	}
	if p.Select != nil {
		patch.Select = Ptr(cloneStrings(p.Select))
	}
	if p.Expand != nil {
		patch.Expand = Ptr(cloneStrings(p.Expand))
	}
	return patch
}

func (p Params) clone() Params {
	p.Select = cloneStrings(p.Select)
	p.Expand = cloneStrings(p.Expand)
	return p
}

func (p Params) normalize() Params {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	return p
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s)
}
