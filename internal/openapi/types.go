package openapi

import "github.com/smartgistics/fleetmate-sub000/internal/model"

// TypeMapping maps entity field types to OpenAPI type/format pairs.
type TypeMapping struct {
	Type   string // OpenAPI type: string, integer, number, boolean
	Format string // OpenAPI format: int64, decimal, date-time
}

var fieldTypeToOpenAPI = map[model.FieldType]TypeMapping{
	model.FieldString:  {"string", ""},
	model.FieldInteger: {"integer", "int64"},
	model.FieldDecimal: {"number", "decimal"},
	model.FieldBoolean: {"boolean", ""},
	model.FieldDate:    {"string", "date-time"},
}

// MapFieldType converts an entity field type to an OpenAPI type mapping.
// Falls back to {"string", ""} for unknown types.
func MapFieldType(t model.FieldType) TypeMapping {
	if m, ok := fieldTypeToOpenAPI[t]; ok {
		return m
	}
	return TypeMapping{Type: "string"}
}
