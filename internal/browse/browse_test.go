package browse

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smartgistics/fleetmate-sub000/internal/backend"
	"github.com/smartgistics/fleetmate-sub000/internal/backend/fixture"
	"github.com/smartgistics/fleetmate-sub000/internal/listview"
	"github.com/smartgistics/fleetmate-sub000/internal/model"
	"github.com/smartgistics/fleetmate-sub000/internal/odata"
)

func customers(t *testing.T) model.Entity {
	t.Helper()
	e, ok := model.LookupEntity("customers")
	if !ok {
		t.Fatal("customers entity missing")
	}
	return e
}

func snapshot(items []model.Record, total int, params listview.Params) listview.Snapshot[model.Record] {
	return listview.Snapshot[model.Record]{
		Version: 3,
		Phase:   listview.PhaseReady,
		Params:  params,
		State:   listview.State[model.Record]{Items: items, Total: total},
	}
}

// ---------------------------------------------------------------------------
// Render tests
// ---------------------------------------------------------------------------

func TestRenderTable(t *testing.T) {
	e := customers(t)
	items := []model.Record{
		{"clientId": "C0001", "name": "Acme Freight", "city": "Reno", "province": "NV", "status": "ACTIVE", "creditLimit": "1500"},
		{"clientId": "C0002", "name": "Blue Line", "city": "Boise", "province": "ID", "status": "HOLD", "creditLimit": "250.5"},
	}
	out := Render(Frame{
		Entity:   e,
		Snapshot: snapshot(items, 42, listview.Params{Offset: 20, Limit: 20, OrderBy: "name desc"}),
		Cursor:   1,
	})

	for _, want := range []string{
		"Customers | page 2/3 | 42 records | sort: name desc",
		"1:ID",
		"2:Name v",
		"  C0001",
		"> C0002",
		"1500.00",
		"250.50",
		helpLine,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("frame missing %q:\n%s", want, out)
		}
	}
	if !strings.HasSuffix(out, "\r\n") {
		t.Error("frame lines must end with CRLF")
	}
}

func TestRenderModes(t *testing.T) {
	e := customers(t)
	params := listview.Params{Limit: 20, OrderBy: "name asc", Filter: "status eq 'ACTIVE'"}

	tests := []struct {
		name  string
		frame Frame
		want  []string
		not   []string
	}{
		{
			"first load",
			Frame{Entity: e, Snapshot: listview.Snapshot[model.Record]{Params: params, State: listview.State[model.Record]{Loading: true}}},
			[]string{"loading...", "filter: status eq 'ACTIVE'", "page 1/1"},
			[]string{"1:ID"},
		},
		{
			"error",
			Frame{Entity: e, Snapshot: listview.Snapshot[model.Record]{Params: params, State: listview.State[model.Record]{Err: "HTTP 503 from TruckMate"}}},
			[]string{"error: HTTP 503 from TruckMate", "r retry"},
			[]string{"loading..."},
		},
		{
			"empty",
			Frame{Entity: e, Snapshot: snapshot(nil, 0, params)},
			[]string{"no records"},
			nil,
		},
		{
			"searching",
			Frame{Entity: e, Snapshot: snapshot(nil, 0, params), Search: "acm", Searching: true},
			[]string{"search: acm_"},
			[]string{"filter:"},
		},
		{
			"status line",
			Frame{Entity: e, Snapshot: snapshot(nil, 0, params), Status: "no column 9"},
			[]string{"no column 9"},
			nil,
		},
		{
			"detail",
			Frame{Entity: e, Snapshot: snapshot(nil, 0, params), Detail: model.Record{"clientId": "C0009", "city": "Fargo", "isInactive": false}},
			[]string{"ID", "C0009", "Fargo", "Inactive", "no", "esc back"},
			[]string{helpLine},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Render(tt.frame)
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("frame missing %q:\n%s", w, out)
				}
			}
			for _, n := range tt.not {
				if strings.Contains(out, n) {
					t.Errorf("frame should not contain %q:\n%s", n, out)
				}
			}
		})
	}
}

func TestRenderClipsToWidth(t *testing.T) {
	e := customers(t)
	items := []model.Record{{"clientId": "C0001", "name": strings.Repeat("Very Long Name ", 10)}}
	out := Render(Frame{Entity: e, Snapshot: snapshot(items, 1, listview.Params{Limit: 20}), Width: 30})
	for _, line := range strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n") {
		if len([]rune(line)) > 30 {
			t.Errorf("line wider than 30: %q", line)
		}
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name  string
		field model.Field
		v     any
		want  string
	}{
		{"nil", model.Field{Type: model.FieldString}, nil, ""},
		{"string", model.Field{Type: model.FieldString}, "Reno", "Reno"},
		{"decimal", model.Field{Type: model.FieldDecimal}, "12.5", "12.50"},
		{"decimal float", model.Field{Type: model.FieldDecimal}, 3.14159, "3.14"},
		{"decimal junk", model.Field{Type: model.FieldDecimal}, "n/a", "n/a"},
		{"date", model.Field{Type: model.FieldDate}, "2026-03-04T10:00:00Z", "2026-03-04"},
		{"short date", model.Field{Type: model.FieldDate}, "2026", "2026"},
		{"bool", model.Field{Type: model.FieldBoolean}, true, "yes"},
		{"integer", model.Field{Type: model.FieldInteger}, 50017, "50017"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(tt.field, tt.v); got != tt.want {
				t.Errorf("FormatValue = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Browser tests
// ---------------------------------------------------------------------------

// syncBuffer is a bytes.Buffer safe for the subscription goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func newBrowser(t *testing.T, rows int) (*Browser, *listview.Controller[model.Record]) {
	t.Helper()
	e := customers(t)
	store, err := fixture.New(backend.Config{Rows: rows})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	ctl := listview.New(backend.Fetcher[model.Record](store, e), listview.Patch{
		Limit:   listview.Ptr(5),
		OrderBy: listview.Ptr("clientId asc"),
	})
	view := listview.NewView(ctl, listview.ViewConfig{
		SearchFilter: func(text string) string { return odata.SearchFilter(e.SearchFields, text) },
	})
	t.Cleanup(func() {
		view.Close()
		ctl.Close()
	})
	b := New(e, view, &syncBuffer{})
	return b, ctl
}

// waitFor polls the browser frame until cond holds.
func waitFor(t *testing.T, b *Browser, cond func(Frame) bool) Frame {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		f := b.Frame()
		if f.Snapshot.Phase == listview.PhaseReady && cond(f) {
			return f
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out; last frame:\n%s", Render(f))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBrowserKeys(t *testing.T) {
	b, ctl := newBrowser(t, 12)
	ctl.Start()
	unsubscribe := ctl.Subscribe(b.onSnapshot)
	defer unsubscribe()

	waitFor(t, b, func(f Frame) bool { return len(f.Snapshot.State.Items) == 5 })

	b.HandleKey('n')
	f := waitFor(t, b, func(f Frame) bool { return f.Snapshot.Params.Offset == 5 })
	if f.Snapshot.State.Items[0]["clientId"] != "C0006" {
		t.Errorf("page 2 starts at %v", f.Snapshot.State.Items[0]["clientId"])
	}

	b.HandleKey('j')
	b.HandleKey('j')
	b.HandleKey('k')
	if got := b.Frame().Cursor; got != 1 {
		t.Errorf("cursor = %d, want 1", got)
	}

	b.HandleKey('\r')
	if d := b.Frame().Detail; d == nil || d["clientId"] != "C0007" {
		t.Fatalf("detail = %v", d)
	}
	b.HandleKey('n') // ignored while the detail pane is open
	b.HandleKey(keyEscape)
	if b.Frame().Detail != nil {
		t.Fatal("escape should close the detail pane")
	}

	b.HandleKey('1') // clientId is the first column and already ascending
	f = waitFor(t, b, func(f Frame) bool { return f.Snapshot.Params.OrderBy == "clientId desc" })
	if f.Cursor != 0 || f.Snapshot.State.Items[0]["clientId"] != "C0007" {
		t.Errorf("cursor %d first %v after sort", f.Cursor, f.Snapshot.State.Items[0]["clientId"])
	}

	b.HandleKey('9')
	if !strings.Contains(b.Frame().Status, "no column 9") {
		t.Errorf("status = %q", b.Frame().Status)
	}

	b.HandleKey('p')
	waitFor(t, b, func(f Frame) bool { return f.Snapshot.Params.Offset == 0 })
	if b.HandleKey('q') != true {
		t.Error("q should quit")
	}
}

func TestBrowserSearch(t *testing.T) {
	b, ctl := newBrowser(t, 15)
	ctl.Start()
	unsubscribe := ctl.Subscribe(b.onSnapshot)
	defer unsubscribe()
	waitFor(t, b, func(f Frame) bool { return f.Snapshot.State.Total == 15 })

	for _, c := range []byte("/C0011x") {
		b.HandleKey(c)
	}
	b.HandleKey(keyDelete)
	if f := b.Frame(); !f.Searching || f.Search != "C0011" {
		t.Fatalf("search = %q searching = %v", f.Search, f.Searching)
	}
	b.HandleKey('q') // typed into the search box, not a quit
	b.HandleKey(keyBackspace)
	b.HandleKey('\r')

	f := waitFor(t, b, func(f Frame) bool { return f.Snapshot.State.Total == 1 })
	if f.Searching || !strings.Contains(f.Snapshot.Params.Filter, "C0011") {
		t.Errorf("frame = %+v", f)
	}
}

func TestBrowserRun(t *testing.T) {
	b, _ := newBrowser(t, 3)

	out := &syncBuffer{}
	b.out = out
	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background(), strings.NewReader("jq")) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after q")
	}
	out.mu.Lock()
	defer out.mu.Unlock()
	if !strings.Contains(out.buf.String(), "Customers") {
		t.Errorf("nothing drawn:\n%s", out.buf.String())
	}
}

func TestBrowserRunEndOfInput(t *testing.T) {
	b, _ := newBrowser(t, 1)
	if err := b.Run(context.Background(), strings.NewReader("")); err != nil {
		t.Errorf("Run on empty input = %v, want nil", err)
	}
}
