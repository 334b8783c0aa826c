package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/smartgistics/fleetmate-sub000/internal/listview"
	"github.com/smartgistics/fleetmate-sub000/internal/model"
)

// wsMessage is the union of every server message.
type wsMessage struct {
	Type    string                       `json:"type"`
	Session string                       `json:"session"`
	Version uint64                       `json:"version"`
	Phase   string                       `json:"phase"`
	Mode    string                       `json:"mode"`
	Params  listview.Params              `json:"params"`
	State   listview.State[model.Record] `json:"state"`
	Page    int                          `json:"page"`
	Pages   int                          `json:"pages"`
	Message string                       `json:"message"`
	Fields  map[string]string            `json:"fields"`
	Record  model.Record                 `json:"record"`
}

// dialSession opens a live session on a fresh fixture for entity with the
// given query string.
func dialSession(t *testing.T, rows int, path string) *websocket.Conn {
	t.Helper()
	h := NewSessionHandler(newFixture(t, rows), SessionOptions{AllowedOrigins: []string{"http://dash.example"}})
	r := chi.NewRouter()
	r.Get("/{entity}/_live", h.Live)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+path, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(wsMessage) bool) wsMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func readyWhere(cond func(wsMessage) bool) func(wsMessage) bool {
	return func(m wsMessage) bool {
		return m.Type == "state" && m.Phase == "ready" && cond(m)
	}
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]interface{}) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Live session tests
// ---------------------------------------------------------------------------

func TestSessionInitialPage(t *testing.T) {
	conn := dialSession(t, 23, "/customers/_live?limit=5")

	msg := readUntil(t, conn, readyWhere(func(wsMessage) bool { return true }))
	if len(msg.State.Items) != 5 || msg.State.Total != 23 {
		t.Errorf("state = %d items, total %d", len(msg.State.Items), msg.State.Total)
	}
	if msg.Page != 1 || msg.Pages != 5 || msg.Mode != "table" {
		t.Errorf("page %d/%d mode %q", msg.Page, msg.Pages, msg.Mode)
	}
	if msg.Params.OrderBy != "name asc" || msg.Session == "" {
		t.Errorf("params = %+v session = %q", msg.Params, msg.Session)
	}
}

func TestSessionSortToggle(t *testing.T) {
	conn := dialSession(t, 12, "/customers/_live?limit=5")
	readUntil(t, conn, readyWhere(func(wsMessage) bool { return true }))

	send(t, conn, map[string]interface{}{"type": "sort", "field": "clientId"})
	msg := readUntil(t, conn, readyWhere(func(m wsMessage) bool { return m.Params.OrderBy == "clientId asc" }))
	if msg.State.Items[0]["clientId"] != "C0001" {
		t.Errorf("first = %v", msg.State.Items[0]["clientId"])
	}

	send(t, conn, map[string]interface{}{"type": "sort", "field": "clientId"})
	msg = readUntil(t, conn, readyWhere(func(m wsMessage) bool { return m.Params.OrderBy == "clientId desc" }))
	if msg.State.Items[0]["clientId"] != "C0012" {
		t.Errorf("first = %v", msg.State.Items[0]["clientId"])
	}
}

func TestSessionPaging(t *testing.T) {
	conn := dialSession(t, 12, "/customers/_live?limit=5&order=clientId")
	readUntil(t, conn, readyWhere(func(wsMessage) bool { return true }))

	send(t, conn, map[string]interface{}{"type": "page", "page": 3})
	msg := readUntil(t, conn, readyWhere(func(m wsMessage) bool { return m.Page == 3 }))
	if msg.Params.Offset != 10 || len(msg.State.Items) != 2 {
		t.Errorf("offset %d, %d items", msg.Params.Offset, len(msg.State.Items))
	}

	send(t, conn, map[string]interface{}{"type": "prev"})
	msg = readUntil(t, conn, readyWhere(func(m wsMessage) bool { return m.Page == 2 }))
	if msg.State.Items[0]["clientId"] != "C0006" {
		t.Errorf("first on page 2 = %v", msg.State.Items[0]["clientId"])
	}
}

func TestSessionSearchAndSelect(t *testing.T) {
	conn := dialSession(t, 20, "/customers/_live?limit=5&page=2")
	readUntil(t, conn, readyWhere(func(wsMessage) bool { return true }))

	send(t, conn, map[string]interface{}{"type": "search", "text": "C0007"})
	msg := readUntil(t, conn, readyWhere(func(m wsMessage) bool { return strings.Contains(m.Params.Filter, "C0007") }))
	if msg.State.Total != 1 || msg.Params.Offset != 0 {
		t.Errorf("total %d offset %d", msg.State.Total, msg.Params.Offset)
	}

	send(t, conn, map[string]interface{}{"type": "select", "index": 0})
	detail := readUntil(t, conn, func(m wsMessage) bool { return m.Type == "detail" })
	if detail.Record["clientId"] != "C0007" {
		t.Errorf("detail = %v", detail.Record)
	}

	send(t, conn, map[string]interface{}{"type": "select", "index": 4})
	errMsg := readUntil(t, conn, func(m wsMessage) bool { return m.Type == "error" })
	if !strings.Contains(errMsg.Message, "no row") {
		t.Errorf("message = %q", errMsg.Message)
	}
}

func TestSessionCreate(t *testing.T) {
	conn := dialSession(t, 8, "/customers/_live?limit=5")
	readUntil(t, conn, readyWhere(func(wsMessage) bool { return true }))

	send(t, conn, map[string]interface{}{
		"type":    "create",
		"payload": map[string]interface{}{"name": "Harbor Logistics", "city": "Tacoma", "province": "WA"},
	})
	created := readUntil(t, conn, func(m wsMessage) bool { return m.Type == "created" })
	if created.Record["clientId"] != "C0009" {
		t.Errorf("created = %v", created.Record)
	}
	readUntil(t, conn, readyWhere(func(m wsMessage) bool { return m.State.Total == 9 }))

	send(t, conn, map[string]interface{}{"type": "create", "payload": map[string]interface{}{"name": "No City"}})
	failed := readUntil(t, conn, func(m wsMessage) bool { return m.Type == "create_error" })
	if _, ok := failed.Fields["city"]; !ok {
		t.Errorf("fields = %v", failed.Fields)
	}
}

func TestSessionCreateReadOnlyEntity(t *testing.T) {
	conn := dialSession(t, 3, "/trips/_live")
	readUntil(t, conn, readyWhere(func(wsMessage) bool { return true }))

	send(t, conn, map[string]interface{}{"type": "create", "payload": map[string]interface{}{"status": "PLAN"}})
	failed := readUntil(t, conn, func(m wsMessage) bool { return m.Type == "create_error" })
	if failed.Message != listview.ErrCreateUnsupported.Error() {
		t.Errorf("message = %q", failed.Message)
	}
}

func TestSessionRejectsBadMessages(t *testing.T) {
	conn := dialSession(t, 3, "/customers/_live")
	readUntil(t, conn, readyWhere(func(wsMessage) bool { return true }))

	tests := []struct {
		name string
		msg  map[string]interface{}
		want string
	}{
		{"unknown type", map[string]interface{}{"type": "dance"}, "unknown message type"},
		{"sort unknown field", map[string]interface{}{"type": "sort", "field": "salary"}, "cannot sort by salary"},
		{"page zero", map[string]interface{}{"type": "page", "page": 0}, "page must be"},
		{"update without patch", map[string]interface{}{"type": "update"}, "requires a patch"},
		{"update bad order", map[string]interface{}{"type": "update", "patch": map[string]interface{}{"orderBy": "salary desc"}}, "cannot order by salary"},
		{"select without index", map[string]interface{}{"type": "select"}, "requires an index"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			send(t, conn, tt.msg)
			msg := readUntil(t, conn, func(m wsMessage) bool { return m.Type == "error" })
			if !strings.Contains(msg.Message, tt.want) {
				t.Errorf("message = %q, want containing %q", msg.Message, tt.want)
			}
		})
	}
}

func TestSessionUpdatePatch(t *testing.T) {
	conn := dialSession(t, 10, "/customers/_live?limit=5")
	readUntil(t, conn, readyWhere(func(wsMessage) bool { return true }))

	send(t, conn, map[string]interface{}{
		"type":  "update",
		"patch": map[string]interface{}{"limit": 3, "select": []string{"clientId", "name"}},
	})
	msg := readUntil(t, conn, readyWhere(func(m wsMessage) bool { return m.Params.Limit == 3 }))
	if len(msg.State.Items) != 3 || len(msg.State.Items[0]) != 2 {
		t.Errorf("items = %v", msg.State.Items)
	}
}

func TestSessionOriginCheck(t *testing.T) {
	h := NewSessionHandler(newFixture(t, 1), SessionOptions{AllowedOrigins: []string{"http://dash.example"}})
	r := chi.NewRouter()
	r.Get("/{entity}/_live", h.Live)
	ts := httptest.NewServer(r)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/customers/_live"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	if err == nil {
		t.Fatal("expected foreign origin to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("resp = %v", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://DASH.example"}})
	if err != nil {
		t.Fatalf("allowed origin: %v", err)
	}
	conn.Close()
}

func TestSessionInvalidQuery(t *testing.T) {
	h := NewSessionHandler(newFixture(t, 1), SessionOptions{})
	r := chi.NewRouter()
	r.Get("/{entity}/_live", h.Live)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/customers/_live?order=salary", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin header", []string{"http://a"}, "", true},
		{"wildcard", []string{"*"}, "http://anything", true},
		{"listed", []string{"http://a", "http://b"}, "http://b", true},
		{"case insensitive", []string{"http://a"}, "HTTP://A", true},
		{"not listed", []string{"http://a"}, "http://c", false},
		{"nothing allowed", nil, "http://a", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := originChecker(tt.allowed)(r); got != tt.want {
				t.Errorf("originChecker = %v, want %v", got, tt.want)
			}
		})
	}
}
