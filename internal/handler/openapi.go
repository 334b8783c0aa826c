package handler

import (
	"net/http"

	"github.com/smartgistics/fleetmate-sub000/internal/model"
	"github.com/smartgistics/fleetmate-sub000/internal/openapi"
)

// OpenAPIHandler serves the OpenAPI 3.1 document of the entity API.
type OpenAPIHandler struct {
	opts openapi.Options
}

// NewOpenAPIHandler creates a new OpenAPIHandler.
func NewOpenAPIHandler(opts openapi.Options) *OpenAPIHandler {
	return &OpenAPIHandler{opts: opts}
}

// ServeSpec handles GET /openapi.json. Without a configured base URL the
// server entry is derived from the request.
func (h *OpenAPIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	opts := h.opts
	if opts.BaseURL == "" {
		scheme := "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		opts.BaseURL = scheme + "://" + r.Host
	}
	writeJSON(w, http.StatusOK, openapi.Generate(model.Entities(), opts))
}
