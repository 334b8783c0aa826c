package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/smartgistics/fleetmate-sub000/internal/backend"
	"github.com/smartgistics/fleetmate-sub000/internal/listview"
	"github.com/smartgistics/fleetmate-sub000/internal/model"
)

// EntityHandler serves list, detail and create for every TruckMate entity.
type EntityHandler struct {
	backend backend.Backend
}

// NewEntityHandler creates an EntityHandler backed by b.
func NewEntityHandler(b backend.Backend) *EntityHandler {
	return &EntityHandler{backend: b}
}

// entityFromRequest resolves the {entity} URL parameter, writing a 404 when
// it names nothing FleetMate knows.
func entityFromRequest(w http.ResponseWriter, r *http.Request) (model.Entity, bool) {
	name := chi.URLParam(r, "entity")
	e, ok := model.LookupEntity(name)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown entity: "+name, map[string]interface{}{
			"entities": model.EntityNames(),
		})
	}
	return e, ok
}

// ListEntities handles GET /api/v1 and returns the entity catalog.
func (h *EntityHandler) ListEntities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"resource": model.Entities(),
	})
}

// Describe handles GET /api/v1/{entity}/_schema: fields, default columns,
// search fields and list defaults of one entity.
func (h *EntityHandler) Describe(w http.ResponseWriter, r *http.Request) {
	e, ok := entityFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// List handles GET /api/v1/{entity}.
//
// Query parameters:
//   - filter:  OData filter, replaces the entity's default filter
//   - search:  free text matched against the entity's search fields
//   - order:   "field asc|desc", one field
//   - fields:  comma-separated projection
//   - expand:  comma-separated related entities
//   - limit, offset, page
//
// The total is returned in meta and in the X-Total-Count header.
func (h *EntityHandler) List(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	e, ok := entityFromRequest(w, r)
	if !ok {
		return
	}

	params, err := listQuery(r).Params(e)
	if err != nil {
		writeBackendError(w, err, "Invalid query")
		return
	}

	page, err := backend.Fetcher[model.Record](h.backend, e)(r.Context(), params)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("entity", e.Name).Msg("list failed")
		writeBackendError(w, err, "Failed to list "+e.Name)
		return
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(page.Total))
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: page.Items,
		Meta:     listMeta(e, params, len(page.Items), page.Total, time.Since(start)),
	})
}

func listMeta(e model.Entity, p listview.Params, count, total int, took time.Duration) model.ResponseMeta {
	return model.ResponseMeta{
		Entity:  e.Name,
		Count:   count,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		Page:    p.Page(),
		Pages:   listview.PageCount(total, p.Limit),
		OrderBy: p.OrderBy,
		Filter:  p.Filter,
		Select:  p.Select,
		Expand:  p.Expand,
		TookMs:  float64(took.Microseconds()) / 1000.0,
	}
}

// Get handles GET /api/v1/{entity}/{id}.
func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, ok := entityFromRequest(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	rec, err := backend.Get[model.Record](r.Context(), h.backend, e, id)
	if err != nil {
		writeBackendError(w, err, "Failed to get "+e.Name+" "+id)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Create handles POST /api/v1/{entity}. The body is either a single record
// or {"resource": [record]}. Required fields are checked before the record
// is sent upstream; the created record is returned with 201.
func (h *EntityHandler) Create(w http.ResponseWriter, r *http.Request) {
	e, ok := entityFromRequest(w, r)
	if !ok {
		return
	}
	if !e.Creatable {
		writeError(w, http.StatusMethodNotAllowed, e.Label+" cannot be created through FleetMate")
		return
	}

	rec, err := parseRecordBody(r)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	created, err := backend.Creator[model.Record](h.backend, e)(r.Context(), rec)
	if err != nil {
		zerolog.Ctx(r.Context()).Info().Err(err).Str("entity", e.Name).Msg("create rejected")
		writeBackendError(w, err, "Failed to create "+e.Name)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// parseRecordBody accepts a bare record or the {"resource": [...]} envelope
// with exactly one record.
func parseRecordBody(r *http.Request) (model.Record, error) {
	var body map[string]interface{}
	if err := readJSON(r, &body); err != nil {
		return nil, err
	}
	raw, wrapped := body["resource"]
	if !wrapped {
		return body, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, errors.New(`"resource" must be an array`)
	}
	if len(list) != 1 {
		return nil, errors.New("exactly one record per request is supported")
	}
	rec, ok := list[0].(map[string]interface{})
	if !ok {
		return nil, errors.New("record must be a JSON object")
	}
	return rec, nil
}
