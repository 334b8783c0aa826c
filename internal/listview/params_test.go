package listview

import (
	"slices"
	"testing"
)

// ---------------------------------------------------------------------------
// Default / Merge
// ---------------------------------------------------------------------------

func TestDefault(t *testing.T) {
	p := Default(Patch{})
	if p.Offset != 0 || p.Limit != DefaultLimit {
		t.Errorf("Default() = %+v, want offset 0 limit %d", p, DefaultLimit)
	}
	if p.OrderBy != "" || p.Filter != "" || p.Select != nil || p.Expand != nil {
		t.Errorf("Default() = %+v, want empty sort, filter and projection", p)
	}

	p = Default(Patch{
		Filter:  Ptr("status ne 'CANCL'"),
		OrderBy: Ptr("name asc"),
		Offset:  Ptr(40),
		Select:  Ptr([]string{"id", "name"}),
	})
	if p.Filter != "status ne 'CANCL'" {
		t.Errorf("Filter = %q", p.Filter)
	}
	if p.OrderBy != "name asc" {
		t.Errorf("OrderBy = %q", p.OrderBy)
	}
	if p.Offset != 40 {
		t.Errorf("Offset = %d, want the explicit start offset 40", p.Offset)
	}
	if !slices.Equal(p.Select, []string{"id", "name"}) {
		t.Errorf("Select = %v", p.Select)
	}
}

func TestMergeEmptyPatchIsIdentity(t *testing.T) {
	states := []Params{
		Default(Patch{}),
		{Offset: 40, Limit: 20, OrderBy: "name desc", Filter: "status ne 'CANCL'"},
		{Offset: 5, Limit: 7, Select: []string{"b", "a"}, Expand: []string{"stops"}},
	}
	for _, s := range states {
		got := Merge(s, Patch{})
		if !got.Equal(s) {
			t.Errorf("Merge(%+v, {}) = %+v", s, got)
		}
	}
}

func TestMergeFilterResetsOffset(t *testing.T) {
	tests := []struct {
		name  string
		patch Patch
	}{
		{"filter only", Patch{Filter: Ptr("x")}},
		{"filter with offset", Patch{Filter: Ptr("x"), Offset: Ptr(60)}},
		{"same filter again", Patch{Filter: Ptr("status eq 'OPEN'")}},
		{"cleared filter", Patch{Filter: Ptr("")}},
	}

	current := Params{Offset: 40, Limit: 20, Filter: "status eq 'OPEN'"}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Merge(current, tc.patch)
			if got.Offset != 0 {
				t.Errorf("Offset = %d, want 0", got.Offset)
			}
			if got.Filter != *tc.patch.Filter {
				t.Errorf("Filter = %q, want %q", got.Filter, *tc.patch.Filter)
			}
		})
	}
}

func TestMergeOffsetWithoutFilter(t *testing.T) {
	current := Params{Offset: 40, Limit: 20, Filter: "x"}
	if got := Merge(current, Patch{Offset: Ptr(60)}); got.Offset != 60 || got.Filter != "x" {
		t.Errorf("Merge offset = %+v", got)
	}
	if got := Merge(current, Patch{OrderBy: Ptr("name asc")}); got.Offset != 40 {
		t.Errorf("Offset = %d, want untouched 40", got.Offset)
	}
}

func TestMergeStickyProjection(t *testing.T) {
	current := Params{Limit: 20, Select: []string{"id", "name"}, Expand: []string{"client"}}

	got := Merge(current, Patch{Offset: Ptr(5)})
	if !slices.Equal(got.Select, current.Select) {
		t.Errorf("Select = %v, want %v", got.Select, current.Select)
	}
	if !slices.Equal(got.Expand, current.Expand) {
		t.Errorf("Expand = %v, want %v", got.Expand, current.Expand)
	}

	got = Merge(current, Patch{Select: Ptr([]string{"status"})})
	if !slices.Equal(got.Select, []string{"status"}) {
		t.Errorf("explicit Select = %v", got.Select)
	}
}

func TestMergeDoesNotAlias(t *testing.T) {
	current := Params{Limit: 20, Select: []string{"id", "name"}}
	next := Merge(current, Patch{Offset: Ptr(20)})
	next.Select[0] = "changed"
	if current.Select[0] != "id" {
		t.Errorf("current.Select mutated through merge result: %v", current.Select)
	}

	sel := []string{"a"}
	next = Merge(current, Patch{Select: &sel})
	sel[0] = "b"
	if next.Select[0] != "a" {
		t.Errorf("merge result aliases the patch slice: %v", next.Select)
	}
}

func TestMergeNormalizes(t *testing.T) {
	got := Merge(Params{Limit: 20}, Patch{Offset: Ptr(-3), Limit: Ptr(0)})
	if got.Offset != 0 || got.Limit != DefaultLimit {
		t.Errorf("Merge = %+v, want offset 0 limit %d", got, DefaultLimit)
	}
}

func TestParamsEqual(t *testing.T) {
	a := Params{Limit: 20, Select: []string{"a", "b"}}
	if !a.Equal(Params{Limit: 20, Select: []string{"a", "b"}}) {
		t.Error("expected equal")
	}
	if a.Equal(Params{Limit: 20, Select: []string{"b", "a"}}) {
		t.Error("select order should matter")
	}
	if a.Equal(Params{Limit: 20, Select: []string{"a", "b"}, Filter: "x"}) {
		t.Error("filter should matter")
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Params
		wantErr bool
	}{
		{"default", Default(Patch{}), false},
		{"ordered", Params{Limit: 20, OrderBy: "name desc"}, false},
		{"order without direction", Params{Limit: 20, OrderBy: "name"}, false},
		{"negative offset", Params{Offset: -1, Limit: 20}, true},
		{"zero limit", Params{Limit: 0}, true},
		{"two fields", Params{Limit: 20, OrderBy: "name asc, status desc"}, true},
		{"comma list", Params{Limit: 20, OrderBy: "name,status"}, true},
		{"bad direction", Params{Limit: 20, OrderBy: "name up"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.p.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Sorting and paging helpers
// ---------------------------------------------------------------------------

func TestParseOrderBy(t *testing.T) {
	tests := []struct {
		in        string
		wantField string
		wantDir   string
		wantErr   bool
	}{
		{"name asc", "name", Asc, false},
		{"name DESC", "name", Desc, false},
		{"  startDate   desc ", "startDate", Desc, false},
		{"name", "name", Asc, false},
		{"", "", "", true},
		{"name sideways", "", "", true},
		{"a asc b", "", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			field, dir, err := ParseOrderBy(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseOrderBy(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			}
			if field != tc.wantField || dir != tc.wantDir {
				t.Errorf("ParseOrderBy(%q) = %q %q, want %q %q", tc.in, field, dir, tc.wantField, tc.wantDir)
			}
		})
	}
}

func TestToggleSort(t *testing.T) {
	tests := []struct {
		current string
		field   string
		want    string
	}{
		{"name asc", "name", "name desc"},
		{"name desc", "name", "name asc"},
		{"name asc", "status", "status asc"},
		{"name desc", "status", "status asc"},
		{"", "status", "status asc"},
		{"name", "name", "name desc"},
	}
	for _, tc := range tests {
		if got := ToggleSort(tc.current, tc.field); got != tc.want {
			t.Errorf("ToggleSort(%q, %q) = %q, want %q", tc.current, tc.field, got, tc.want)
		}
	}
}

func TestPageOffset(t *testing.T) {
	tests := []struct {
		page, limit, want int
	}{
		{3, 20, 40},
		{1, 20, 0},
		{0, 20, 0},
		{-2, 20, 0},
		{2, 0, DefaultLimit},
		{4, 25, 75},
	}
	for _, tc := range tests {
		if got := PageOffset(tc.page, tc.limit); got != tc.want {
			t.Errorf("PageOffset(%d, %d) = %d, want %d", tc.page, tc.limit, got, tc.want)
		}
	}
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		total, limit, want int
	}{
		{57, 20, 3},
		{60, 20, 3},
		{61, 20, 4},
		{0, 20, 1},
		{1, 20, 1},
	}
	for _, tc := range tests {
		if got := PageCount(tc.total, tc.limit); got != tc.want {
			t.Errorf("PageCount(%d, %d) = %d, want %d", tc.total, tc.limit, got, tc.want)
		}
	}
	if got := (Params{Offset: 40, Limit: 20}).Page(); got != 3 {
		t.Errorf("Page() = %d, want 3", got)
	}
}

func TestParamsPatchRoundTrip(t *testing.T) {
	want := Params{Offset: 40, Limit: 20, OrderBy: "name desc", Filter: "city eq 'Reno'", Select: []string{"name"}}

	got := Default(want.Patch())
	if !got.Equal(want) {
		t.Errorf("Default(want.Patch()) = %+v, want %+v", got, want)
	}

	patch := want.Patch()
	if patch.Expand != nil {
		t.Errorf("Expand = %v, want nil patch field", *patch.Expand)
	}
	(*patch.Select)[0] = "city"
	if want.Select[0] != "name" {
		t.Error("Patch must not alias the params' slices")
	}
}
