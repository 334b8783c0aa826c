package listview

import (
	"fmt"
	"strings"
)

// Sort directions accepted in an OrderBy expression.
const (
	Asc  = "asc"
	Desc = "desc"
)

// ParseOrderBy splits an OrderBy expression into its field and direction.
// The direction defaults to asc when omitted; anything beyond one field and
// one direction token is rejected.
func ParseOrderBy(orderBy string) (field, dir string, err error) {
	tokens := strings.Fields(orderBy)
	switch len(tokens) {
	case 0:
		return "", "", fmt.Errorf("empty order expression")
	case 1:
		field, dir = tokens[0], Asc
	case 2:
		field, dir = tokens[0], strings.ToLower(tokens[1])
	default:
		return "", "", fmt.Errorf("invalid order %q: expected '<field> asc|desc'", orderBy)
	}
	if strings.Contains(field, ",") {
		return "", "", fmt.Errorf("invalid order %q: only one sort field is allowed", orderBy)
	}
	if dir != Asc && dir != Desc {
		return "", "", fmt.Errorf("invalid order direction %q: must be asc or desc", tokens[1])
	}
	return field, dir, nil
}

// ToggleSort computes the OrderBy that results from clicking the header of
// field. Clicking the active field flips its direction; any other field
// starts ascending.
func ToggleSort(current, field string) string {
	curField, curDir, err := ParseOrderBy(current)
	if err == nil && curField == field && curDir == Asc {
		return field + " " + Desc
	}
	return field + " " + Asc
}

// PageOffset converts a 1-based page number into an offset.
func PageOffset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return (page - 1) * limit
}

// PageCount returns how many pages of size limit hold total records.
func PageCount(total, limit int) int {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if total <= 0 {
		return 1
	}
	return (total + limit - 1) / limit
}
