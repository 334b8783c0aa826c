package model

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/shopspring/decimal"
)

func TestEntitiesCatalog(t *testing.T) {
	want := []string{"carriers", "customers", "orders", "shipments", "trips"}
	if got := EntityNames(); !slices.Equal(got, want) {
		t.Fatalf("EntityNames() = %v, want %v", got, want)
	}

	for _, e := range Entities() {
		t.Run(e.Name, func(t *testing.T) {
			if e.Path == "" || e.Collection == "" {
				t.Errorf("missing path or collection: %+v", e)
			}
			if !e.HasField(e.Key) {
				t.Errorf("key %q is not a field", e.Key)
			}
			for _, c := range e.Columns {
				if !e.HasField(c) {
					t.Errorf("column %q is not a field", c)
				}
			}
			for _, s := range e.SearchFields {
				f, ok := e.Field(s)
				if !ok {
					t.Errorf("search field %q is not a field", s)
				} else if f.Type != FieldString {
					t.Errorf("search field %q has type %s, want string", s, f.Type)
				}
			}
			if e.Creatable && len(e.RequiredFields()) == 0 {
				t.Error("creatable entity declares no required fields")
			}
		})
	}
}

func TestLookupEntity(t *testing.T) {
	tests := []struct {
		name   string
		wantOK bool
	}{
		{"trips", true},
		{"Trips", true},
		{" orders ", true},
		{"drivers", false},
		{"", false},
	}
	for _, tc := range tests {
		if _, ok := LookupEntity(tc.name); ok != tc.wantOK {
			t.Errorf("LookupEntity(%q) ok = %v, want %v", tc.name, ok, tc.wantOK)
		}
	}
}

func TestCancelledExcludedByDefault(t *testing.T) {
	for _, name := range []string{"orders", "trips"} {
		e, _ := LookupEntity(name)
		if e.DefaultFilter != "status ne 'CANCL'" {
			t.Errorf("%s default filter = %q", name, e.DefaultFilter)
		}
	}
	if e, _ := LookupEntity("customers"); e.DefaultFilter != "" {
		t.Errorf("customers default filter = %q, want none", e.DefaultFilter)
	}
}

func TestRequiredFields(t *testing.T) {
	e, _ := LookupEntity("customers")
	want := []string{"name", "city", "province"}
	if got := e.RequiredFields(); !slices.Equal(got, want) {
		t.Errorf("RequiredFields() = %v, want %v", got, want)
	}
}

func TestOrderDecodesTruckMateJSON(t *testing.T) {
	raw := `{"orderId":1042,"billNumber":"FB-1042","billToId":"ACME","status":"AVAIL",
		"startZone":"TORONTO","endZone":"CHICAGO","totalCharges":1875.50}`

	var o Order
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if o.OrderID != 1042 || o.BillToID != "ACME" || o.EndZone != "CHICAGO" {
		t.Errorf("decoded %+v", o)
	}
	if !o.TotalCharges.Equal(decimal.RequireFromString("1875.5")) {
		t.Errorf("TotalCharges = %s", o.TotalCharges)
	}
}

func TestErrorResponseJSON(t *testing.T) {
	b, err := json.Marshal(ErrorResponse{Error: ErrorDetail{Code: 404, Message: "not found"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"error":{"code":404,"message":"not found"}}`
	if string(b) != want {
		t.Errorf("got %s, want %s", b, want)
	}
}
