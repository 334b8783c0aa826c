package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/smartgistics/fleetmate-sub000/internal/backend"
	"github.com/smartgistics/fleetmate-sub000/internal/listview"
	"github.com/smartgistics/fleetmate-sub000/internal/model"
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response using the standard error
// envelope. The optional ctx map provides additional context fields.
func writeError(w http.ResponseWriter, code int, message string, ctx ...map[string]interface{}) {
	var ctxMap map[string]interface{}
	if len(ctx) > 0 {
		ctxMap = ctx[0]
	}
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Message: message,
			Context: ctxMap,
		},
	})
}

// errBodyTooLarge is returned by readJSON when the body exceeds the limit
// installed by the body size middleware.
var errBodyTooLarge = errors.New("request body too large")

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure. Numbers are kept as
// json.Number so decimal amounts survive untouched.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

// queryInt extracts an integer query parameter, returning defaultVal if the
// parameter is missing or cannot be parsed.
func queryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// queryString extracts a string query parameter.
func queryString(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// listQuery collects the list parameters of a request. $-prefixed
// TruckMate spellings are accepted as aliases.
func listQuery(r *http.Request) backend.Query {
	first := func(keys ...string) string {
		for _, k := range keys {
			if v := queryString(r, k); v != "" {
				return v
			}
		}
		return ""
	}
	return backend.Query{
		Filter: first("filter", "$filter"),
		Search: first("search", "q"),
		Order:  first("order", "$orderBy"),
		Fields: first("fields", "$select"),
		Expand: first("expand", "$expand"),
		Limit:  queryInt(r, "limit", 0),
		Offset: queryInt(r, "offset", 0),
		Page:   queryInt(r, "page", 0),
	}
}

// classifyBackendError maps a backend or controller error to an HTTP status
// and a client-facing message. Validation failures carry their per-field
// messages as context.
func classifyBackendError(err error, fallbackMsg string) (int, string, map[string]interface{}) {
	var verr *backend.ValidationError

	switch {
	case errors.As(err, &verr):
		var ctx map[string]interface{}
		if len(verr.Fields) > 0 {
			fields := make(map[string]interface{}, len(verr.Fields))
			for k, v := range verr.Fields {
				fields[k] = v
			}
			ctx = map[string]interface{}{"fields": fields}
		}
		return http.StatusUnprocessableEntity, verr.Message, ctx
	case errors.Is(err, backend.ErrInvalidQuery):
		return http.StatusBadRequest, err.Error(), nil
	case errors.Is(err, backend.ErrNotConfigured):
		return http.StatusServiceUnavailable, backend.ErrNotConfigured.Error(), nil
	case errors.Is(err, backend.ErrNotFound):
		return http.StatusNotFound, fallbackMsg + ": not found", nil
	case errors.Is(err, backend.ErrUnsupported), errors.Is(err, listview.ErrCreateUnsupported):
		return http.StatusMethodNotAllowed, err.Error(), nil
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, fallbackMsg + ": upstream timed out", nil
	default:
		return http.StatusBadGateway, fallbackMsg + ": " + err.Error(), nil
	}
}

// writeBackendError classifies err and writes the error envelope.
func writeBackendError(w http.ResponseWriter, err error, fallbackMsg string) {
	code, msg, ctx := classifyBackendError(err, fallbackMsg)
	if ctx != nil {
		writeError(w, code, msg, ctx)
		return
	}
	writeError(w, code, msg)
}
