package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartgistics/fleetmate-sub000/internal/server/middleware"
)

func TestSystemMe(t *testing.T) {
	h := NewSystemHandler(newFixture(t, 1), "test", true)

	tests := []struct {
		name      string
		principal *middleware.Principal
		want      map[string]interface{}
	}{
		{"anonymous", nil, map[string]interface{}{"authenticated": false}},
		{
			"verified",
			&middleware.Principal{Subject: "u-17", Email: "dispatch@example.com", Name: "Dispatch"},
			map[string]interface{}{"authenticated": true, "subject": "u-17", "email": "dispatch@example.com", "name": "Dispatch"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/v1/_system/me", nil)
			if tt.principal != nil {
				r = r.WithContext(context.WithValue(r.Context(), middleware.AuthPrincipalKey, tt.principal))
			}
			rr := httptest.NewRecorder()
			h.Me(rr, r)

			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d", rr.Code)
			}
			var got map[string]interface{}
			json.NewDecoder(rr.Body).Decode(&got)
			if len(got) != len(tt.want) {
				t.Fatalf("me = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestSystemInfoAndProbes(t *testing.T) {
	h := NewSystemHandler(newFixture(t, 1), "0.9.1", false)

	rr := httptest.NewRecorder()
	h.Info(rr, httptest.NewRequest("GET", "/api/v1/_system", nil))
	var info map[string]interface{}
	json.NewDecoder(rr.Body).Decode(&info)
	if info["name"] != "fleetmate" || info["version"] != "0.9.1" || info["backend"] != "fixture" {
		t.Errorf("info = %v", info)
	}
	if entities, _ := info["entities"].([]interface{}); len(entities) != 5 {
		t.Errorf("entities = %v", info["entities"])
	}

	rr = httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest("GET", "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("readyz status = %d; body = %s", rr.Code, rr.Body.String())
	}
}
