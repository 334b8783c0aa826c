// Package odata builds, validates and parses the subset of OData query
// syntax that FleetMate sends to TruckMate ($filter, $orderBy, $select,
// $expand). Filters built here travel as opaque strings through the list
// controller; Parse turns them back into an expression tree when a local
// data source has to evaluate them.
package odata

import (
	"fmt"
	"regexp"
	"strings"
)

// identifierRegex validates field names. TruckMate uses camelCase
// identifiers made of letters, digits and underscores.
var identifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// reservedWords cannot be used as field names: the OData operators would
// make a filter ambiguous, and the SQL keywords would reach the fixture
// store's statements.
var reservedWords = map[string]bool{
	"AND": true, "OR": true, "NOT": true, "EQ": true, "NE": true,
	"GT": true, "GE": true, "LT": true, "LE": true, "IN": true,
	"TRUE": true, "FALSE": true, "NULL": true,
	"SELECT": true, "INSERT": true, "UPDATE": true, "DELETE": true,
	"DROP": true, "CREATE": true, "ALTER": true, "UNION": true,
	"FROM": true, "WHERE": true, "TABLE": true,
}

// ValidateIdentifier ensures a field name is safe to place in a query.
func ValidateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > 128 {
		return fmt.Errorf("identifier too long (max 128 chars): %q", name)
	}
	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("invalid identifier %q: must match [a-zA-Z_][a-zA-Z0-9_]*", name)
	}
	if reservedWords[strings.ToUpper(name)] {
		return fmt.Errorf("identifier %q is a reserved word", name)
	}
	return nil
}

// ValidateIdentifiers validates multiple identifiers, returning the first error found.
func ValidateIdentifiers(names []string) error {
	for _, name := range names {
		if err := ValidateIdentifier(name); err != nil {
			return err
		}
	}
	return nil
}

// SanitizeSearchTerm strips null bytes and surrounding whitespace from free
// text typed into a search box and bounds its length.
func SanitizeSearchTerm(term string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = 256
	}
	term = strings.TrimSpace(strings.ReplaceAll(term, "\x00", ""))
	if len(term) > maxLen {
		return "", fmt.Errorf("search term too long (max %d chars)", maxLen)
	}
	return term, nil
}
