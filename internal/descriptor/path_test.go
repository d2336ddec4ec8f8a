package descriptor

import "testing"

func TestParsePathSegments(t *testing.T) {
	segs, err := ParsePath("a.b[].c")
	if err != nil {
		t.Fatalf("ParsePath() error: %v", err)
	}
	want := []Segment{
		{Kind: SegField, Field: "a"},
		{Kind: SegField, Field: "b"},
		{Kind: SegEvery},
		{Kind: SegField, Field: "c"},
	}
	if len(segs) != len(want) {
		t.Fatalf("got %d segments, want %d: %+v", len(segs), len(want), segs)
	}
	for i := range want {
		if segs[i] != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, segs[i], want[i])
		}
	}
}

func TestExtractEvery(t *testing.T) {
	doc := map[string]any{
		"items": []any{
			map[string]any{"id": "1"},
			map[string]any{"id": "2"},
		},
	}
	segs, _ := ParsePath("items[].id")
	vals, err := Extract(doc, segs)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if len(vals) != 2 || vals[0] != "1" || vals[1] != "2" {
		t.Errorf("Extract() = %v", vals)
	}
}

func TestExtractRoot(t *testing.T) {
	doc := map[string]any{"x": "y"}
	vals, err := Extract(doc, nil)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if len(vals) != 1 {
		t.Fatalf("expected 1 value, got %d", len(vals))
	}
}
