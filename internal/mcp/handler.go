package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/smartgistics/fleetmate-sub000/internal/backend"
	"github.com/smartgistics/fleetmate-sub000/internal/model"
)

// --------------------------------------------------------------------------
// Parameter extraction helpers
// --------------------------------------------------------------------------

// requireString extracts a required string argument from the tool request.
func requireString(request mcp.CallToolRequest, key string) (string, error) {
	val, err := request.RequireString(key)
	if err != nil || strings.TrimSpace(val) == "" {
		return "", fmt.Errorf("missing required parameter %q", key)
	}
	return val, nil
}

// optionalString extracts an optional string argument from the tool request.
func optionalString(request mcp.CallToolRequest, key string) string {
	return request.GetString(key, "")
}

// optionalInt extracts an optional integer argument from the tool request.
func optionalInt(request mcp.CallToolRequest, key string, defaultVal int) int {
	return request.GetInt(key, defaultVal)
}

// optionalStringSlice extracts an optional string slice argument from the tool request.
func optionalStringSlice(request mcp.CallToolRequest, key string) []string {
	return request.GetStringSlice(key, nil)
}

// getObjectArg extracts a map[string]interface{} argument from the tool request.
// Returns nil if the key is not present or not a map.
func getObjectArg(request mcp.CallToolRequest, key string) map[string]interface{} {
	args := request.GetArguments()
	if args == nil {
		return nil
	}
	raw, ok := args[key]
	if !ok {
		return nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil
	}
	return m
}

// entityArg resolves the "entity" argument.
func entityArg(request mcp.CallToolRequest) (model.Entity, error) {
	name, err := requireString(request, "entity")
	if err != nil {
		return model.Entity{}, fmt.Errorf("%v. Available entities: %v", err, model.EntityNames())
	}
	e, ok := model.LookupEntity(name)
	if !ok {
		return model.Entity{}, fmt.Errorf("entity %q not found. Available entities: %v", name, model.EntityNames())
	}
	return e, nil
}

// --------------------------------------------------------------------------
// Response builders
// --------------------------------------------------------------------------

// successJSON marshals data to JSON and returns it as a tool result.
func successJSON(data interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// toolError returns a tool-level error result. Errors returned this way are
// visible to the LLM so it can self-correct; they do NOT terminate the MCP
// session.
func toolError(format string, args ...interface{}) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(fmt.Sprintf(format, args...)), nil
}

// backendError turns a backend failure into a tool error with a hint the
// agent can act on.
func backendError(action string, e model.Entity, err error) (*mcp.CallToolResult, error) {
	var verr *backend.ValidationError
	switch {
	case errors.As(err, &verr):
		var b strings.Builder
		b.WriteString(verr.Message)
		names := make([]string, 0, len(verr.Fields))
		for name := range verr.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "\n  - %s: %s", name, verr.Fields[name])
		}
		fmt.Fprintf(&b, "\n\nRequired fields: %v\nKnown fields: %v", e.RequiredFields(), e.FieldNames())
		return toolError("%s", b.String())
	case errors.Is(err, backend.ErrInvalidQuery):
		return toolError("%v\n\nFields of %s: %v\n"+
			"Filter syntax (OData): field eq 'value', field gt 10, contains(field,'text'), "+
			"combined with and/or/not and parentheses.\n"+
			"Order syntax: field asc|desc (one field)", err, e.Name, e.FieldNames())
	case errors.Is(err, backend.ErrNotFound):
		return toolError("No %s record with that %s", e.Name, e.Key)
	case errors.Is(err, backend.ErrNotConfigured):
		return toolError("%v", err)
	default:
		return toolError("Failed to %s %s: %v", action, e.Name, err)
	}
}

// clamp constrains val to [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
