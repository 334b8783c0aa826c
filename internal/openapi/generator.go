// Package openapi describes the FleetMate HTTP API as an OpenAPI 3.1
// document built with kin-openapi.
package openapi

import (
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/smartgistics/fleetmate-sub000/internal/backend"
	"github.com/smartgistics/fleetmate-sub000/internal/model"
)

// BasePath prefixes every entity route.
const BasePath = "/api/v1"

// Options controls document generation.
type Options struct {
	BaseURL string
	Version string
	// Auth adds the bearer security requirement to every operation.
	Auth bool
}

// Generate builds the document for entities.
func Generate(entities []model.Entity, opts Options) *openapi3.T {
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title: "FleetMate API",
			Description: "Paginated, sorted and filtered access to TruckMate customers, carriers, " +
				"orders, trips and shipments. Live list sessions are served over WebSocket at " +
				BasePath + "/{entity}/_live.",
			Version: version,
		},
	}
	if opts.BaseURL != "" {
		doc.Servers = openapi3.Servers{{URL: opts.BaseURL}}
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  "Token issued by the dashboard's identity provider.",
		},
	}
	if opts.Auth {
		doc.Security = openapi3.SecurityRequirements{{"bearerAuth": {}}}
	}

	doc.Components.Schemas["ErrorResponse"] = errorSchema()
	doc.Components.Schemas["ListMeta"] = metaSchema()

	doc.Paths = openapi3.NewPaths()
	for _, e := range entities {
		addEntityPaths(doc, e)
	}
	return doc
}

// addEntityPaths registers the schemas and the list, create and detail
// operations of one entity.
func addEntityPaths(doc *openapi3.T, e model.Entity) {
	schemaName := SchemaName(e)
	doc.Components.Schemas[schemaName] = recordSchema(e)
	schemaRef := "#/components/schemas/" + schemaName

	listResponse := &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"resource": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:  &openapi3.Types{"array"},
						Items: openapi3.NewSchemaRef(schemaRef, nil),
					},
				},
				"meta": openapi3.NewSchemaRef("#/components/schemas/ListMeta", nil),
			},
			Required: []string{"resource", "meta"},
		},
	}

	collection := &openapi3.PathItem{
		Get: listOperation(e, listQueryParameters(e), listResponse),
	}
	if e.Creatable {
		doc.Components.Schemas[schemaName+"Create"] = createSchema(e)
		collection.Post = createOperation(e, "#/components/schemas/"+schemaName+"Create", schemaRef)
	}
	doc.Paths.Set(BasePath+"/"+e.Name, collection)

	doc.Paths.Set(BasePath+"/"+e.Name+"/{id}", &openapi3.PathItem{
		Get: getOperation(e, schemaRef),
	})
}

func recordSchema(e model.Entity) *openapi3.SchemaRef {
	props := openapi3.Schemas{}
	for _, f := range e.Fields {
		s := fieldSchema(f)
		s.Description = f.Label
		props[f.Name] = &openapi3.SchemaRef{Value: s}
	}
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:        &openapi3.Types{"object"},
			Description: e.Label + " record. Key: " + e.Key + ".",
			Properties:  props,
		},
	}
}

// createSchema lists every field except the key, which TruckMate assigns.
func createSchema(e model.Entity) *openapi3.SchemaRef {
	props := openapi3.Schemas{}
	for _, f := range e.Fields {
		if f.Name == e.Key {
			continue
		}
		props[f.Name] = &openapi3.SchemaRef{Value: fieldSchema(f)}
	}
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:       &openapi3.Types{"object"},
			Properties: props,
			Required:   e.RequiredFields(),
		},
	}
}

func fieldSchema(f model.Field) *openapi3.Schema {
	m := MapFieldType(f.Type)
	return &openapi3.Schema{Type: &openapi3.Types{m.Type}, Format: m.Format}
}

// ─── Operation Builders ─────────────────────────────────────────────────────

func listOperation(e model.Entity, params openapi3.Parameters, responseSchema *openapi3.SchemaRef) *openapi3.Operation {
	desc := fmt.Sprintf("Retrieve one page of %s with optional filtering, searching, sorting and projection.", e.Name)
	if e.DefaultFilter != "" {
		desc += fmt.Sprintf(" Without a filter the default %q applies.", e.DefaultFilter)
	}
	return &openapi3.Operation{
		Tags:        []string{e.Name},
		Summary:     "List " + e.Name,
		Description: desc,
		OperationID: "list_" + e.Name,
		Parameters:  params,
		Responses:   newResponses("200", "One page of "+e.Name+"; the total is also sent as X-Total-Count", responseSchema),
	}
}

func getOperation(e model.Entity, schemaRef string) *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{e.Name},
		Summary:     fmt.Sprintf("Get one %s record", e.Name),
		OperationID: "get_" + e.Name,
		Parameters: openapi3.Parameters{
			&openapi3.ParameterRef{
				Value: openapi3.NewPathParameter("id").
					WithDescription("Value of " + e.Key + ".").
					WithSchema(openapi3.NewStringSchema()),
			},
		},
		Responses: newResponses("200", e.Label+" record", openapi3.NewSchemaRef(schemaRef, nil)),
	}
}

func createOperation(e model.Entity, createRef, schemaRef string) *openapi3.Operation {
	reqBody := &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Description: fmt.Sprintf("Record to create in %s. Send a single object or {\"resource\": [object]}.", e.Name),
			Required:    true,
			Content: openapi3.Content{
				"application/json": &openapi3.MediaType{
					Schema: &openapi3.SchemaRef{
						Value: &openapi3.Schema{
							OneOf: openapi3.SchemaRefs{
								openapi3.NewSchemaRef(createRef, nil),
								{
									Value: &openapi3.Schema{
										Type: &openapi3.Types{"object"},
										Properties: openapi3.Schemas{
											"resource": &openapi3.SchemaRef{
												Value: &openapi3.Schema{
													Type:     &openapi3.Types{"array"},
													Items:    openapi3.NewSchemaRef(createRef, nil),
													MinItems: 1,
													MaxItems: openapi3.Uint64Ptr(1),
												},
											},
										},
									},
								},
							},
						},
					},
				},
			},
		},
	}

	responses := newResponses("201", "Created "+e.Name+" record", openapi3.NewSchemaRef(schemaRef, nil))
	unprocessable := "Validation failed; context.fields maps each field to its problem"
	responses.Set("422", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &unprocessable,
			Content:     openapi3.NewContentWithJSONSchemaRef(openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)),
		},
	})

	return &openapi3.Operation{
		Tags:        []string{e.Name},
		Summary:     "Create " + strings.TrimSuffix(e.Name, "s"),
		OperationID: "create_" + e.Name,
		RequestBody: reqBody,
		Responses:   responses,
	}
}

// ─── Query Parameter Builders ───────────────────────────────────────────────

func listQueryParameters(e model.Entity) openapi3.Parameters {
	intParam := func(name, desc string) *openapi3.ParameterRef {
		return &openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter(name).
				WithDescription(desc).
				WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}),
		}
	}
	strParam := func(name, desc string) *openapi3.ParameterRef {
		return &openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter(name).
				WithDescription(desc).
				WithSchema(openapi3.NewStringSchema()),
		}
	}
	return openapi3.Parameters{
		strParam("filter", "OData filter (e.g. \"status eq 'AVAIL' and contains(city,'Reno')\"). Replaces the default filter."),
		strParam("search", "Free text matched against "+strings.Join(e.SearchFields, ", ")+"."),
		strParam("order", fmt.Sprintf("One sort field and direction (e.g. %q).", e.DefaultOrder)),
		strParam("fields", "Comma-separated list of fields to include."),
		strParam("expand", "Comma-separated related entities to expand."),
		intParam("limit", fmt.Sprintf("Page size, 1 to %d.", backend.MaxLimit)),
		intParam("offset", "Number of records to skip."),
		intParam("page", "1-based page number; used when offset is absent."),
	}
}

// ─── Response Helpers ───────────────────────────────────────────────────────

// newResponses builds a Responses map with a success response and standard error responses.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	errorRef := openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)
	for _, e := range []struct{ code, desc string }{
		{"400", "Bad request"},
		{"401", "Unauthorized"},
		{"404", "Not found"},
		{"502", "TruckMate request failed"},
		{"503", "TruckMate is not configured"},
	} {
		desc := e.desc
		responses.Set(e.code, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &desc,
				Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
			},
		})
	}
	return responses
}

func errorSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"code":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
							"message": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
							"context": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
						},
					},
				},
			},
		},
	}
}

// metaSchema returns the schema for the "meta" field in list responses.
func metaSchema() *openapi3.SchemaRef {
	integer := func(desc string) *openapi3.SchemaRef {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64", Description: desc}}
	}
	str := func(desc string) *openapi3.SchemaRef {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Description: desc}}
	}
	strList := func(desc string) *openapi3.SchemaRef {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{
			Type:        &openapi3.Types{"array"},
			Items:       &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
			Description: desc,
		}}
	}
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"entity":   str("Entity name."),
				"count":    integer("Records in this page."),
				"total":    integer("Records matching the query across all pages."),
				"limit":    integer("Page size."),
				"offset":   integer("Records skipped."),
				"page":     integer("1-based page number."),
				"pages":    integer("Number of pages."),
				"order_by": str("Applied sort."),
				"filter":   str("Applied filter."),
				"select":   strList("Applied projection."),
				"expand":   strList("Applied expansions."),
				"took_ms":  {Value: &openapi3.Schema{Type: &openapi3.Types{"number"}, Description: "Server time in milliseconds."}},
			},
		},
	}
}

// ─── Naming Helpers ─────────────────────────────────────────────────────────

// SchemaName returns the component name of an entity's record schema,
// e.g. "Customer" for customers.
func SchemaName(e model.Entity) string {
	name := strings.TrimSuffix(e.Name, "s")
	var b strings.Builder
	for _, r := range capitalize(name) {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// capitalize returns a string with its first character uppercased.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
