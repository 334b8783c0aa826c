package truckmate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smartgistics/fleetmate-sub000/internal/backend"
	"github.com/smartgistics/fleetmate-sub000/internal/listview"
	"github.com/smartgistics/fleetmate-sub000/internal/model"
)

func testClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(backend.Config{
		BaseURL:    srv.URL + "/",
		APIKey:     "secret",
		UserAgent:  "FleetMate/test",
		MaxRetries: 3,
		RetryBase:  time.Millisecond,
	})
}

func customers(t *testing.T) model.Entity {
	t.Helper()
	e, ok := model.LookupEntity("customers")
	if !ok {
		t.Fatal("customers entity missing")
	}
	return e
}

// ---------------------------------------------------------------------------
// Query encoding
// ---------------------------------------------------------------------------

func TestQuery(t *testing.T) {
	p := listview.Params{
		Offset:  40,
		Limit:   20,
		OrderBy: "name desc",
		Filter:  "status eq 'ACTIVE'",
		Select:  []string{"clientId", "name"},
		Expand:  []string{"contacts"},
	}
	q := Query(p)

	want := map[string]string{
		"limit":    "20",
		"offset":   "40",
		"$orderBy": "name desc",
		"$filter":  "status eq 'ACTIVE'",
		"$select":  "clientId,name",
		"$expand":  "contacts",
	}
	for k, v := range want {
		if got := q.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}

	q = Query(listview.Params{Limit: 20})
	for _, k := range []string{"$filter", "$orderBy", "$select", "$expand"} {
		if q.Has(k) {
			t.Errorf("empty %s should be omitted", k)
		}
	}
}

// ---------------------------------------------------------------------------
// List / Get / Create
// ---------------------------------------------------------------------------

func TestListDecodesCollectionAndCount(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/clients" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != "FleetMate/test" {
			t.Errorf("User-Agent = %q", got)
		}
		if got := r.URL.Query().Get("$filter"); got != "city eq 'Reno'" {
			t.Errorf("$filter = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"count": 57, "clients": [{"clientId":"C1","name":"ACME"},{"clientId":"C2","name":"Beta"}]}`)
	})

	page, err := c.List(context.Background(), customers(t), listview.Params{Limit: 2, Filter: "city eq 'Reno'"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 57 || len(page.Items) != 2 {
		t.Fatalf("page = %d items, total %d", len(page.Items), page.Total)
	}
	var rec model.Customer
	if err := json.Unmarshal(page.Items[1], &rec); err != nil || rec.Name != "Beta" {
		t.Errorf("item[1] = %+v, %v", rec, err)
	}
}

func TestListWithoutCount(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"clients": [{"clientId":"C1"}]}`)
	})
	page, err := c.List(context.Background(), customers(t), listview.Params{Offset: 20, Limit: 20})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 21 {
		t.Errorf("Total = %d, want 21", page.Total)
	}
}

func TestListEmptyCollection(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"count": 0, "clients": null}`)
	})
	page, err := c.List(context.Background(), customers(t), listview.Params{Limit: 20})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Items == nil || len(page.Items) != 0 || page.Total != 0 {
		t.Errorf("page = %+v", page)
	}
}

func TestGetNotFound(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/clients/C%2F9" && r.URL.RawPath != "/clients/C%2F9" {
			t.Errorf("path = %s (raw %s)", r.URL.Path, r.URL.RawPath)
		}
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"status":404,"title":"Not Found","detail":"Client C/9 does not exist"}`)
	})
	_, err := c.Get(context.Background(), customers(t), "C/9")
	if !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Detail != "Client C/9 does not exist" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestCreateWrapsPayload(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var body map[string][]map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if len(body["clients"]) != 1 || body["clients"][0]["name"] != "ACME" {
			t.Errorf("body = %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"clients":[{"clientId":"C77","name":"ACME"}]}`)
	})
	raw, err := c.Create(context.Background(), customers(t), json.RawMessage(`{"name":"ACME"}`))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.Contains(string(raw), `"C77"`) {
		t.Errorf("created = %s", raw)
	}
}

func TestCreateValidationError(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"status":422,"title":"Validation failed","detail":"Invalid client","errors":[{"field":"province","title":"Invalid","detail":"unknown province"}]}`)
	})
	_, err := c.Create(context.Background(), customers(t), json.RawMessage(`{"name":"ACME"}`))
	var verr *backend.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if verr.Message != "Invalid client" || verr.Fields["province"] != "Invalid unknown province" {
		t.Errorf("ValidationError = %+v", verr)
	}
	if calls.Load() != 1 {
		t.Errorf("422 must not be retried, got %d calls", calls.Load())
	}
}

func TestCreateUnsupportedEntity(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	trips, _ := model.LookupEntity("trips")
	if _, err := c.Create(context.Background(), trips, json.RawMessage(`{}`)); !errors.Is(err, backend.ErrUnsupported) {
		t.Errorf("err = %v", err)
	}
}

// ---------------------------------------------------------------------------
// Retries and configuration
// ---------------------------------------------------------------------------

func TestRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			io.WriteString(w, `{"count":1,"clients":[{"clientId":"C1"}]}`)
		}
	})
	page, err := c.List(context.Background(), customers(t), listview.Params{Limit: 20})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 1 || calls.Load() != 3 {
		t.Errorf("total=%d calls=%d", page.Total, calls.Load())
	}
}

func TestRetriesAreBounded(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, `{"title":"Bad Gateway","detail":"upstream down"}`)
	})
	_, err := c.List(context.Background(), customers(t), listview.Params{Limit: 20})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("err = %v", err)
	}
	if err.Error() != "TruckMate 502 Bad Gateway: upstream down" {
		t.Errorf("message = %q", err.Error())
	}
	if calls.Load() != 4 {
		t.Errorf("calls = %d, want 1 + 3 retries", calls.Load())
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, "bad filter")
	})
	_, err := c.List(context.Background(), customers(t), listview.Params{Limit: 20})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Detail != "bad filter" {
		t.Fatalf("err = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d", calls.Load())
	}
}

func TestNotConfigured(t *testing.T) {
	c := New(backend.Config{})
	if c.Configured() {
		t.Fatal("client without base URL reports configured")
	}
	ctx := context.Background()
	e := customers(t)
	if _, err := c.List(ctx, e, listview.Params{Limit: 20}); !errors.Is(err, backend.ErrNotConfigured) {
		t.Errorf("List err = %v", err)
	}
	if _, err := c.Get(ctx, e, "C1"); !errors.Is(err, backend.ErrNotConfigured) {
		t.Errorf("Get err = %v", err)
	}
	if err := c.Ping(ctx); !errors.Is(err, backend.ErrNotConfigured) {
		t.Errorf("Ping err = %v", err)
	}
}

func TestContextCancelStopsRetries(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "10")
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.List(ctx, customers(t), listview.Params{Limit: 20})
	if err == nil {
		t.Fatal("expected error")
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("cancel not honored, took %v", time.Since(start))
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"3", 3 * time.Second},
		{"-1", 0},
		{"garbage", 0},
		{"3600", maxRetryWait},
		{now.Add(5 * time.Second).Format(http.TimeFormat), 5 * time.Second},
		{now.Add(-time.Minute).Format(http.TimeFormat), 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in, now); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
