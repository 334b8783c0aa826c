package model

// ListResponse is the standard envelope for list endpoints, wrapping results
// in a "resource" array with pagination metadata.
type ListResponse struct {
	Resource []Record     `json:"resource"`
	Meta     ResponseMeta `json:"meta"`
}

// ResponseMeta contains pagination and timing information for list responses.
type ResponseMeta struct {
	Entity  string   `json:"entity"`
	Count   int      `json:"count"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
	Page    int      `json:"page"`
	Pages   int      `json:"pages"`
	OrderBy string   `json:"order_by,omitempty"`
	Filter  string   `json:"filter,omitempty"`
	Select  []string `json:"select,omitempty"`
	Expand  []string `json:"expand,omitempty"`
	TookMs  float64  `json:"took_ms"`
}

// ErrorResponse is the standard envelope for error responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned by the API.
type ErrorDetail struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}
