package store

import (
	"encoding/json"
	"reflect"
	"testing"
)

func decodeJSON(t *testing.T, raw string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestNormalizeLinkedAssets(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []int64
	}{
		{"id list", `[1, 2, 3]`, []int64{1, 2, 3}},
		{"numeric strings", `["4", 5]`, []int64{4, 5}},
		{"object list", `[{"id": 7, "name": "a"}, {"id": 9}]`, []int64{7, 9}},
		{"nested id string", `[{"id": "12"}]`, []int64{12}},
		{"duplicates collapse", `[3, 3, "3"]`, []int64{3}},
		{"one bad element rejects all", `[1, "x", 3]`, []int64{}},
		{"object without id rejects all", `[1, {"name": "a"}]`, []int64{}},
		{"not a list", `{"id": 5}`, []int64{}},
		{"null", `null`, []int64{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeLinkedAssets(decodeJSON(t, tc.raw))
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRepairLinkedAssetsDropsBadElementsIndividually(t *testing.T) {
	got := RepairLinkedAssets(decodeJSON(t, `[1, "x", "3", {"id": 4}, true]`))
	want := []int64{1, 3, 4}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestWithoutSelf(t *testing.T) {
	ids, dropped := withoutSelf([]int64{1, 2, 3}, 2)
	if !dropped {
		t.Error("expected self link to be reported")
	}
	if !reflect.DeepEqual(ids, []int64{1, 3}) {
		t.Errorf("ids = %v", ids)
	}

	ids, dropped = withoutSelf([]int64{1, 3}, 2)
	if dropped {
		t.Error("no self link present, nothing to report")
	}
	if !reflect.DeepEqual(ids, []int64{1, 3}) {
		t.Errorf("ids = %v", ids)
	}
}

func TestDiffIDs(t *testing.T) {
	removed, added := diffIDs([]int64{1, 2, 3}, []int64{2, 3, 4, 5})
	if !reflect.DeepEqual(removed, []int64{1}) {
		t.Errorf("removed = %v", removed)
	}
	if !reflect.DeepEqual(added, []int64{4, 5}) {
		t.Errorf("added = %v", added)
	}

	removed, added = diffIDs(nil, nil)
	if len(removed) != 0 || len(added) != 0 {
		t.Errorf("empty diff expected, got removed=%v added=%v", removed, added)
	}
}

func TestIDListScanRepairs(t *testing.T) {
	var l IDList
	if err := l.Scan([]byte(`[1, "2", "junk"]`)); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual([]int64(l), []int64{1, 2}) {
		t.Errorf("scanned = %v", l)
	}

	if err := l.Scan([]byte(`not json`)); err != nil {
		t.Fatal(err)
	}
	if len(l) != 0 {
		t.Errorf("malformed column should scan to empty, got %v", l)
	}

	if err := l.Scan(nil); err != nil {
		t.Fatal(err)
	}
	if l == nil || len(l) != 0 {
		t.Errorf("NULL column should scan to empty non-nil list, got %#v", l)
	}
}
