package backend

import (
	"fmt"
	"strings"

	"github.com/smartgistics/fleetmate-sub000/internal/listview"
	"github.com/smartgistics/fleetmate-sub000/internal/model"
	"github.com/smartgistics/fleetmate-sub000/internal/odata"
)

// MaxLimit caps the page size any caller may request.
const MaxLimit = 1000

// maxSearchLen bounds free-text search input.
const maxSearchLen = 200

// Query is a list request as the outer surfaces receive it: raw strings
// from a URL, a tool call or command flags. Zero values mean "not given".
type Query struct {
	Filter string
	Search string
	Order  string
	Fields string
	Expand string
	Limit  int
	Offset int
	Page   int
}

// Params turns q into list params for e. Unset values fall back to the
// entity defaults. A search term is matched against the entity's search
// fields and combined with the filter. Page is only used when no offset is
// given. The result passes CheckParams.
func (q Query) Params(e model.Entity) (listview.Params, error) {
	base := listview.Default(listview.Patch{
		OrderBy: listview.Ptr(e.DefaultOrder),
		Filter:  listview.Ptr(e.DefaultFilter),
	})

	var patch listview.Patch
	if q.Limit != 0 {
		if q.Limit < 0 {
			return listview.Params{}, invalidQuery("limit must be positive, got %d", q.Limit)
		}
		patch.Limit = listview.Ptr(min(q.Limit, MaxLimit))
	}
	if q.Order != "" {
		clause, err := odata.ParseOrderBy(q.Order)
		if err != nil {
			return listview.Params{}, invalidQuery("%v", err)
		}
		patch.OrderBy = listview.Ptr(clause.String())
	}
	if fields, err := odata.ParseSelect(q.Fields); err != nil {
		return listview.Params{}, invalidQuery("invalid fields: %v", err)
	} else if fields != nil {
		patch.Select = &fields
	}
	if expand, err := odata.ParseSelect(q.Expand); err != nil {
		return listview.Params{}, invalidQuery("invalid expand: %v", err)
	} else if expand != nil {
		patch.Expand = &expand
	}

	filter := e.DefaultFilter
	if f := strings.TrimSpace(q.Filter); f != "" {
		filter = f
	}
	if term := strings.TrimSpace(q.Search); term != "" {
		clean, err := odata.SanitizeSearchTerm(term, maxSearchLen)
		if err != nil {
			return listview.Params{}, invalidQuery("invalid search: %v", err)
		}
		filter = odata.And(filter, odata.SearchFilter(e.SearchFields, clean))
	}
	if filter != base.Filter {
		patch.Filter = listview.Ptr(filter)
	}

	p := listview.Merge(base, patch)

	// Merge resets the offset when the filter changes, so paging is applied
	// afterwards.
	switch {
	case q.Offset < 0:
		return listview.Params{}, invalidQuery("offset must be >= 0, got %d", q.Offset)
	case q.Offset > 0:
		p = listview.Merge(p, listview.Patch{Offset: listview.Ptr(q.Offset)})
	case q.Page > 1:
		p = listview.Merge(p, listview.Patch{Offset: listview.Ptr(listview.PageOffset(q.Page, p.Limit))})
	}

	if err := CheckParams(e, p); err != nil {
		return listview.Params{}, err
	}
	return p, nil
}

// CheckParams verifies that every field p refers to belongs to e, that the
// filter parses and that the page size is within MaxLimit. Errors wrap
// ErrInvalidQuery.
func CheckParams(e model.Entity, p listview.Params) error {
	if err := p.Validate(); err != nil {
		return invalidQuery("%v", err)
	}
	if p.Limit > MaxLimit {
		return invalidQuery("limit must be <= %d, got %d", MaxLimit, p.Limit)
	}
	if p.OrderBy != "" {
		clause, err := odata.ParseOrderBy(p.OrderBy)
		if err != nil {
			return invalidQuery("%v", err)
		}
		if !e.HasField(clause.Field) {
			return invalidQuery("cannot order by %s: not a field of %s", clause.Field, e.Name)
		}
	}
	for _, n := range p.Select {
		if err := odata.ValidateIdentifier(n); err != nil {
			return invalidQuery("invalid fields: %v", err)
		}
		if !e.HasField(n) {
			return invalidQuery("invalid fields: %s is not a field of %s", n, e.Name)
		}
	}
	for _, n := range p.Expand {
		if err := odata.ValidateIdentifier(n); err != nil {
			return invalidQuery("invalid expand: %v", err)
		}
	}
	if p.Filter != "" {
		if err := odata.Validate(p.Filter, e.FieldNames()); err != nil {
			return invalidQuery("invalid filter: %v", err)
		}
	}
	return nil
}

func invalidQuery(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
}

// SearchFilter returns a function mapping live search text to a filter: the
// text matched against e's search fields and combined with base. Text that
// fails sanitizing searches for nothing and leaves base alone.
func SearchFilter(e model.Entity, base string) func(text string) string {
	return func(text string) string {
		clean, err := odata.SanitizeSearchTerm(text, maxSearchLen)
		if err != nil {
			clean = ""
		}
		return odata.And(base, odata.SearchFilter(e.SearchFields, clean))
	}
}
