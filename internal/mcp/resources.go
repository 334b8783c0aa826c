package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/smartgistics/fleetmate-sub000/internal/model"
)

const (
	entitiesURI      = "fleetmate://entities"
	entityURIPrefix  = "fleetmate://entities/"
	entityURITemplate = entityURIPrefix + "{entity}"
)

// registerResources adds MCP resource definitions to the server. Resources
// provide read-only data that LLM clients can load into their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {

	// -------------------------------------------------------------------
	// fleetmate://entities: catalog of browsable entities
	// -------------------------------------------------------------------
	srv.AddResource(
		mcp.NewResource(
			entitiesURI,
			"TruckMate Entities",
			mcp.WithResourceDescription(
				"The TruckMate entities FleetMate can list, with their key field, "+
					"default columns and list defaults.",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleEntitiesResource,
	)

	// -------------------------------------------------------------------
	// fleetmate://entities/{entity}: field schema of one entity
	// -------------------------------------------------------------------
	srv.AddResourceTemplate(
		mcp.NewResourceTemplate(
			entityURITemplate,
			"Entity Schema",
			mcp.WithTemplateDescription(
				"Every field of a TruckMate entity with its type and whether it is "+
					"required on create.",
			),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleEntityResource,
	)
}

// handleEntitiesResource returns the entity catalog.
func (s *MCPServer) handleEntitiesResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {
	return jsonResource(entitiesURI, summarize(model.Entities()))
}

// handleEntityResource returns the full description of one entity.
func (s *MCPServer) handleEntityResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	// Extract entity name from URI: "fleetmate://entities/{entity}"
	uri := request.Params.URI
	name := strings.TrimPrefix(uri, entityURIPrefix)
	if name == "" || name == uri {
		return nil, fmt.Errorf("invalid entity URI %q: expected %s", uri, entityURITemplate)
	}
	e, ok := model.LookupEntity(name)
	if !ok {
		return nil, fmt.Errorf("entity %q not found (available: %v)", name, model.EntityNames())
	}
	return jsonResource(uri, e)
}

func jsonResource(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
