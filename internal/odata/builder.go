package odata

import (
	"fmt"
	"strconv"
	"strings"
)

// Quote renders s as an OData string literal, doubling embedded quotes.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Literal renders a Go value as an OData literal.
func Literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return Quote(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return Quote(fmt.Sprint(x))
	}
}

// Eq renders "field eq value".
func Eq(field string, v any) string {
	return field + " eq " + Literal(v)
}

// Ne renders "field ne value".
func Ne(field string, v any) string {
	return field + " ne " + Literal(v)
}

// Contains renders "contains(field,'s')".
func Contains(field, s string) string {
	return "contains(" + field + "," + Quote(s) + ")"
}

// StartsWith renders "startswith(field,'s')".
func StartsWith(field, s string) string {
	return "startswith(" + field + "," + Quote(s) + ")"
}

// And joins non-empty expressions with "and". Each operand is parenthesized
// when there is more than one.
func And(exprs ...string) string {
	return join("and", exprs)
}

// Or joins non-empty expressions with "or".
func Or(exprs ...string) string {
	return join("or", exprs)
}

func join(op string, exprs []string) string {
	parts := make([]string, 0, len(exprs))
	for _, e := range exprs {
		if e = strings.TrimSpace(e); e != "" {
			parts = append(parts, e)
		}
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	for i, p := range parts {
		parts[i] = "(" + p + ")"
	}
	return strings.Join(parts, " "+op+" ")
}

// SearchFilter derives the filter for a free-text search: a record matches
// when any of fields contains term. An empty term yields an empty filter.
func SearchFilter(fields []string, term string) string {
	term = strings.TrimSpace(term)
	if term == "" || len(fields) == 0 {
		return ""
	}
	clauses := make([]string, len(fields))
	for i, f := range fields {
		clauses[i] = Contains(f, term)
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return strings.Join(clauses, " or ")
}

// ---------------------------------------------------------------------------
// $orderBy / $select
// ---------------------------------------------------------------------------

// OrderClause is a single validated sort directive.
type OrderClause struct {
	Field string
	Desc  bool
}

// String renders the clause the way TruckMate expects it in $orderBy.
func (o OrderClause) String() string {
	if o.Desc {
		return o.Field + " desc"
	}
	return o.Field + " asc"
}

// SQL renders the clause as an ORDER BY term using quote for the column.
func (o OrderClause) SQL(quote func(string) string) string {
	if o.Desc {
		return quote(o.Field) + " DESC"
	}
	return quote(o.Field) + " ASC"
}

// ParseOrderBy parses "field [asc|desc]". Exactly one field is accepted;
// the direction defaults to asc. An empty input yields nil.
func ParseOrderBy(order string) (*OrderClause, error) {
	order = strings.TrimSpace(order)
	if order == "" {
		return nil, nil
	}
	if strings.Contains(order, ",") {
		return nil, fmt.Errorf("invalid order %q: only one sort field is allowed", order)
	}

	tokens := strings.Fields(order)
	if len(tokens) > 2 {
		return nil, fmt.Errorf("invalid order clause %q: expected 'field [asc|desc]'", order)
	}
	if err := ValidateIdentifier(tokens[0]); err != nil {
		return nil, fmt.Errorf("invalid order field: %w", err)
	}

	clause := &OrderClause{Field: tokens[0]}
	if len(tokens) == 2 {
		switch strings.ToLower(tokens[1]) {
		case "asc":
		case "desc":
			clause.Desc = true
		default:
			return nil, fmt.Errorf("invalid order direction %q: must be asc or desc", tokens[1])
		}
	}
	return clause, nil
}

// ParseSelect parses a comma-separated field list like "id,name,status"
// into validated names, preserving order. Returns nil for an empty input.
func ParseSelect(fields string) ([]string, error) {
	fields = strings.TrimSpace(fields)
	if fields == "" {
		return nil, nil
	}

	parts := strings.Split(fields, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if err := ValidateIdentifier(name); err != nil {
			return nil, fmt.Errorf("invalid field name: %w", err)
		}
		result = append(result, name)
	}
	if len(result) == 0 {
		return nil, nil
	}
	return result, nil
}

// JoinList renders a $select or $expand value.
func JoinList(names []string) string {
	return strings.Join(names, ",")
}
