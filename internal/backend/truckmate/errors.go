package truckmate

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/smartgistics/fleetmate-sub000/internal/backend"
)

// APIError is a non-2xx TruckMate response. Title and Detail are shown to
// users verbatim.
type APIError struct {
	Status int           `json:"status"`
	Title  string        `json:"title"`
	Detail string        `json:"detail"`
	Errors []ErrorDetail `json:"errors,omitempty"`
}

// ErrorDetail is one entry of the "errors" array of a TruckMate error body.
type ErrorDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title,omitempty"`
	Detail string `json:"detail,omitempty"`
	Field  string `json:"field,omitempty"`
}

func (e *APIError) Error() string {
	switch {
	case e.Title != "" && e.Detail != "":
		return fmt.Sprintf("TruckMate %d %s: %s", e.Status, e.Title, e.Detail)
	case e.Title != "":
		return fmt.Sprintf("TruckMate %d %s", e.Status, e.Title)
	case e.Detail != "":
		return fmt.Sprintf("TruckMate %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("TruckMate %d %s", e.Status, http.StatusText(e.Status))
}

// Unwrap maps a 404 onto backend.ErrNotFound.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return backend.ErrNotFound
	}
	return nil
}

func (e *APIError) validation() *backend.ValidationError {
	msg := e.Detail
	if msg == "" {
		msg = e.Title
	}
	if msg == "" {
		msg = "TruckMate rejected the record"
	}
	verr := &backend.ValidationError{Message: msg}
	for i, d := range e.Errors {
		if verr.Fields == nil {
			verr.Fields = make(map[string]string)
		}
		field := d.Field
		if field == "" {
			field = fmt.Sprintf("errors[%d]", i)
		}
		verr.Fields[field] = strings.TrimSpace(d.Title + " " + d.Detail)
	}
	return verr
}

func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if len(body) > 0 && json.Unmarshal(body, apiErr) != nil {
		apiErr.Detail = strings.TrimSpace(string(body))
	}
	apiErr.Status = resp.StatusCode
	return apiErr
}
