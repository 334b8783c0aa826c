package mcp

import (
	"context"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/smartgistics/fleetmate-sub000/internal/backend"
	"github.com/smartgistics/fleetmate-sub000/internal/listview"
	"github.com/smartgistics/fleetmate-sub000/internal/model"
)

// defaultToolLimit is the page size of fleetmate_query when none is given.
const defaultToolLimit = 25

// registerTools registers all FleetMate MCP tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {

	// ----- Discovery tools -----

	srv.AddTool(
		mcp.NewTool("fleetmate_list_entities",
			mcp.WithDescription(
				"List the TruckMate entities FleetMate can browse (customers, carriers, "+
					"orders, trips, shipments). Returns each entity's key field, default "+
					"columns, default order and filter, and whether records can be created. "+
					"Use this first to discover what can be queried.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListEntities,
	)

	srv.AddTool(
		mcp.NewTool("fleetmate_describe_entity",
			mcp.WithDescription(
				"Get every field of an entity with its type, label and whether it is "+
					"required on create. Use this before filtering, ordering or creating.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("entity",
				mcp.Required(),
				mcp.Description("Entity name, e.g. \"orders\""),
			),
		),
		s.handleDescribeEntity,
	)

	// ----- Query tools -----

	srv.AddTool(
		mcp.NewTool("fleetmate_query",
			mcp.WithDescription(
				"Fetch one page of an entity's records, sorted and filtered on the "+
					"TruckMate side. Returns the records plus the total match count and "+
					"page numbers.\n\n"+
					"Filter syntax (OData):\n"+
					"  - Comparison: status eq 'AVAIL', totalCharges gt 1000\n"+
					"  - Functions: contains(name,'freight'), startswith(billNumber,'B1')\n"+
					"  - Logical: status eq 'AVAIL' and startZone eq 'TORONTO'\n"+
					"  - Set: status in ('AVAIL','DISP')\n\n"+
					"A filter replaces the entity's default filter. search is matched "+
					"against the entity's search fields and combined with the filter.\n"+
					"Order syntax: 'field asc' or 'field desc', one field.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("entity",
				mcp.Required(),
				mcp.Description("Entity name, e.g. \"orders\""),
			),
			mcp.WithString("filter",
				mcp.Description("OData filter expression (e.g. \"status eq 'AVAIL'\")"),
			),
			mcp.WithString("search",
				mcp.Description("Free text matched against the entity's search fields"),
			),
			mcp.WithString("order",
				mcp.Description("Order clause (e.g. \"pickUpBy desc\")"),
			),
			mcp.WithArray("fields",
				mcp.Description("Field names to return. Omit for all fields."),
				mcp.WithStringItems(),
			),
			mcp.WithArray("expand",
				mcp.Description("Related collections to expand, passed to TruckMate as $expand"),
				mcp.WithStringItems(),
			),
			mcp.WithNumber("limit",
				mcp.Description("Page size (default 25, max 1000)"),
			),
			mcp.WithNumber("offset",
				mcp.Description("Number of records to skip"),
			),
			mcp.WithNumber("page",
				mcp.Description("1-based page number, used when offset is not given"),
			),
		),
		s.handleQuery,
	)

	srv.AddTool(
		mcp.NewTool("fleetmate_get",
			mcp.WithDescription("Fetch a single record of an entity by its key."),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("entity",
				mcp.Required(),
				mcp.Description("Entity name, e.g. \"customers\""),
			),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Value of the entity's key field, e.g. \"C0042\" or \"50017\""),
			),
		),
		s.handleGet,
	)

	// ----- Mutation tools -----

	srv.AddTool(
		mcp.NewTool("fleetmate_create",
			mcp.WithDescription(
				"Create one record of a creatable entity (customers, carriers, orders). "+
					"Required fields are checked before anything is sent to TruckMate; "+
					"the key is assigned by TruckMate. Returns the created record.",
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
			mcp.WithString("entity",
				mcp.Required(),
				mcp.Description("Entity name, e.g. \"customers\""),
			),
			mcp.WithObject("record",
				mcp.Required(),
				mcp.Description("Field values of the new record (e.g. {\"name\": \"Acme\", \"city\": \"Reno\", \"province\": \"NV\"})"),
			),
		),
		s.handleCreate,
	)
}

// entitySummary is the catalog view of an entity.
type entitySummary struct {
	Name          string   `json:"name"`
	Label         string   `json:"label"`
	Key           string   `json:"key"`
	Columns       []string `json:"columns"`
	SearchFields  []string `json:"search_fields"`
	DefaultOrder  string   `json:"default_order,omitempty"`
	DefaultFilter string   `json:"default_filter,omitempty"`
	Creatable     bool     `json:"creatable"`
}

func summarize(entities []model.Entity) []entitySummary {
	out := make([]entitySummary, len(entities))
	for i, e := range entities {
		out[i] = entitySummary{
			Name:          e.Name,
			Label:         e.Label,
			Key:           e.Key,
			Columns:       e.Columns,
			SearchFields:  e.SearchFields,
			DefaultOrder:  e.DefaultOrder,
			DefaultFilter: e.DefaultFilter,
			Creatable:     e.Creatable,
		}
	}
	return out
}

func (s *MCPServer) handleListEntities(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	return successJSON(map[string]interface{}{
		"backend":  s.backend.Name(),
		"entities": summarize(model.Entities()),
	})
}

func (s *MCPServer) handleDescribeEntity(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	e, err := entityArg(request)
	if err != nil {
		return toolError("%v", err)
	}
	return successJSON(e)
}

func (s *MCPServer) handleQuery(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	start := time.Now()

	e, err := entityArg(request)
	if err != nil {
		return toolError("%v", err)
	}

	q := backend.Query{
		Filter: optionalString(request, "filter"),
		Search: optionalString(request, "search"),
		Order:  optionalString(request, "order"),
		Fields: strings.Join(optionalStringSlice(request, "fields"), ","),
		Expand: strings.Join(optionalStringSlice(request, "expand"), ","),
		Limit:  clamp(optionalInt(request, "limit", defaultToolLimit), 1, backend.MaxLimit),
		Offset: max(optionalInt(request, "offset", 0), 0),
		Page:   optionalInt(request, "page", 0),
	}
	params, err := q.Params(e)
	if err != nil {
		return backendError("query", e, err)
	}

	page, err := backend.Fetcher[model.Record](s.backend, e)(ctx, params)
	if err != nil {
		s.logger.Warn().Err(err).Str("entity", e.Name).Msg("mcp query failed")
		return backendError("query", e, err)
	}

	return successJSON(map[string]interface{}{
		"records":  page.Items,
		"count":    len(page.Items),
		"total":    page.Total,
		"limit":    params.Limit,
		"offset":   params.Offset,
		"page":     params.Page(),
		"pages":    listview.PageCount(page.Total, params.Limit),
		"order_by": params.OrderBy,
		"filter":   params.Filter,
		"took_ms":  float64(time.Since(start).Microseconds()) / 1000.0,
	})
}

func (s *MCPServer) handleGet(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	e, err := entityArg(request)
	if err != nil {
		return toolError("%v", err)
	}
	id, err := requireString(request, "id")
	if err != nil {
		return toolError("%v", err)
	}

	rec, err := backend.Get[model.Record](ctx, s.backend, e, id)
	if err != nil {
		return backendError("get", e, err)
	}
	return successJSON(rec)
}

func (s *MCPServer) handleCreate(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	e, err := entityArg(request)
	if err != nil {
		return toolError("%v", err)
	}
	if !e.Creatable {
		return toolError("%s cannot be created through FleetMate. Creatable entities: %v", e.Label, creatableNames())
	}
	record := getObjectArg(request, "record")
	if record == nil {
		return toolError("missing required parameter \"record\": expected a JSON object of field values")
	}

	created, err := backend.Creator[model.Record](s.backend, e)(ctx, record)
	if err != nil {
		s.logger.Info().Err(err).Str("entity", e.Name).Msg("mcp create rejected")
		return backendError("create", e, err)
	}
	s.logger.Info().Str("entity", e.Name).Interface("key", created[e.Key]).Msg("record created via MCP")

	return successJSON(map[string]interface{}{
		"created": created,
	})
}

func creatableNames() []string {
	var names []string
	for _, e := range model.Entities() {
		if e.Creatable {
			names = append(names, e.Name)
		}
	}
	return names
}
