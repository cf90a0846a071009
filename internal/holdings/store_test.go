package holdings

import (
	"os"
	"path/filepath"
	"testing"
)

func writeHoldingsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "holdings.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestStore_Load(t *testing.T) {
	path := writeHoldingsFile(t, `
holdings:
  - code: bhp.ax
    name: BHP Group
    target_price: 46.50
    target_direction: up
  - code: WES
    muted: true
  - code: ""
  - code: CBA
    target_price: -1.0
`)

	s := NewStore(path)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Empty code and negative target are skipped.
	if s.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", s.Len())
	}

	h, ok := s.Get("BHP")
	if !ok {
		t.Fatal("BHP not found after normalization")
	}
	if h.TargetPrice == nil || *h.TargetPrice != 46.50 {
		t.Errorf("target price: got %v", h.TargetPrice)
	}
	if h.TargetDirection != "up" {
		t.Errorf("target direction: got %q", h.TargetDirection)
	}

	h, ok = s.Get("WES")
	if !ok || !h.Muted {
		t.Errorf("WES: got %+v, ok=%v, want muted", h, ok)
	}
}

func TestStore_Load_DuplicateKeepsLast(t *testing.T) {
	path := writeHoldingsFile(t, `
holdings:
  - code: BHP
    name: First
  - code: BHP
    name: Second
`)

	s := NewStore(path)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len: got %d, want 1", s.Len())
	}
	h, _ := s.Get("BHP")
	if h.Name != "Second" {
		t.Errorf("duplicate resolution: got %q, want Second", h.Name)
	}
}

func TestStore_Load_ReplacesSnapshot(t *testing.T) {
	path := writeHoldingsFile(t, `
holdings:
  - code: BHP
`)
	s := NewStore(path)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := os.WriteFile(path, []byte("holdings:\n  - code: WES\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if _, ok := s.Get("BHP"); ok {
		t.Error("BHP should be gone after reload")
	}
	if _, ok := s.Get("WES"); !ok {
		t.Error("WES missing after reload")
	}
}

func TestStore_Load_MissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope.yaml"))
	if err := s.Load(); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestStore_Load_MalformedYAML(t *testing.T) {
	path := writeHoldingsFile(t, "holdings:\n  - code: [broken\n")
	s := NewStore(path)
	if err := s.Load(); err == nil {
		t.Error("expected error for malformed yaml")
	}
}
