package meta

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSetGetDelMergeClone(t *testing.T) {
	metaMap := New(nil)
	metaMap.Set("a", "1")
	if value, ok := metaMap.Get("a"); !ok || value != "1" {
		t.Fatalf("get failed")
	}
	metaMap.Merge(New(map[string]string{"b": "2"}))
	if value, ok := metaMap.Get("b"); !ok || value != "2" {
		t.Fatalf("merge failed")
	}
	cloned := metaMap.Clone()
	if len(cloned) != 2 || cloned["a"] != "1" {
		t.Fatalf("clone failed: %+v", cloned)
	}
	metaMap.Del("a")
	if _, ok := metaMap.Get("a"); ok {
		t.Fatalf("del failed")
	}
	if _, ok := cloned.Get("a"); !ok {
		t.Fatalf("clone shares storage with original")
	}
}

func TestSetOrDel(t *testing.T) {
	m := New(map[string]string{KeyNotes: "old"})
	v := "new"
	m.SetOrDel(KeyNotes, &v)
	if m[KeyNotes] != "new" {
		t.Fatalf("expected overwrite, got %q", m[KeyNotes])
	}
	m.SetOrDel(KeyNotes, nil)
	if _, ok := m[KeyNotes]; ok {
		t.Fatalf("expected notes removed")
	}
}

func TestValidationLimits(t *testing.T) {
	pairs := make(map[string]string)
	for i := 0; i < MaxPairs+1; i++ {
		pairs["k"+strings.Repeat("x", i)] = "v"
	}
	if err := New(pairs).Validate(); err == nil {
		t.Fatalf("expected too many pairs")
	}
	if err := New(map[string]string{strings.Repeat("k", MaxKeyLen+1): "v"}).Validate(); err == nil {
		t.Fatalf("expected key too long")
	}
	if err := New(map[string]string{"k": strings.Repeat("v", MaxValLen+1)}).Validate(); err == nil {
		t.Fatalf("expected value too long")
	}
}

func TestEqual(t *testing.T) {
	var nilMap Metadata
	if !nilMap.Equal(Metadata{}) {
		t.Fatalf("nil and empty should be equal")
	}
	a := New(map[string]string{"a": "1"})
	if a.Equal(New(map[string]string{"a": "2"})) {
		t.Fatalf("different values compared equal")
	}
	if !a.Equal(New(map[string]string{"a": "1"})) {
		t.Fatalf("same values compared different")
	}
}

func TestImportHints(t *testing.T) {
	notes := "cash on hand"
	hint := true
	m := ImportHints(&notes, 2, &hint)
	if m[KeyLevel] != "2" || m[KeyNotes] != notes || m[KeyPlaceholderHint] != "true" {
		t.Fatalf("unexpected hints: %+v", m)
	}
	m = ImportHints(nil, 0, nil)
	if len(m) != 1 {
		t.Fatalf("expected only level, got %+v", m)
	}
}

func TestStableJSONAndRoundtrip(t *testing.T) {
	metaMap := New(map[string]string{"b": "2", "a": "1"})
	b1, _ := metaMap.MarshalStableJSON()
	if string(b1) != `{"a":"1","b":"2"}` {
		t.Fatalf("unexpected stable json: %s", string(b1))
	}
	var unmarshaled Metadata
	if err := json.Unmarshal(b1, &unmarshaled); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !unmarshaled.Equal(metaMap) {
		t.Fatalf("roundtrip mismatch: %+v", unmarshaled)
	}
}
