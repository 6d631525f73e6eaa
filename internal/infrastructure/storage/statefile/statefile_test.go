package statefile

import (
	"os"
	"path/filepath"
	"testing"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestLoadMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope.json"))
	var d doc
	ok, err := s.Load(&d)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("missing file must report ok=false")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "sub", "doc.json"))

	if err := s.Save(doc{Name: "x", Count: 3}); err != nil {
		t.Fatal(err)
	}
	var d doc
	ok, err := s.Load(&d)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || d.Name != "x" || d.Count != 3 {
		t.Fatalf("round trip lost data: ok=%v %+v", ok, d)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "doc.json"))
	for i := 0; i < 3; i++ {
		if err := s.Save(doc{Count: i}); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("dir has %d entries, want only the document", len(entries))
	}
}

func TestLoadCorruptFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	if err := os.WriteFile(path, []byte("{truncated"), 0o644); err != nil {
		t.Fatal(err)
	}
	var d doc
	if _, err := New(path).Load(&d); err == nil {
		t.Fatal("corrupt file must error, not silently reset")
	}
}
