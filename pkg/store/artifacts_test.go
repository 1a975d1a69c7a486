package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStoreWritesUniqueFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewArtifactStore(filepath.Join(dir, "audio"), "mp3", nil)

	first, err := s.Store([]byte("one"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	second, err := s.Store([]byte("two"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if first == second {
		t.Fatalf("expected unique paths, both %q", first)
	}
	if !strings.HasSuffix(first, ".mp3") {
		t.Fatalf("expected mp3 extension, got %q", first)
	}
	data, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != "one" {
		t.Fatalf("artifact content mismatch: %q", data)
	}
}

func TestSweepRemovesOnlyStaleArtifacts(t *testing.T) {
	dir := t.TempDir()
	s := NewArtifactStore(dir, "mp3", nil)

	stale, err := s.Store([]byte("old"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	fresh, err := s.Store([]byte("new"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	foreign := filepath.Join(dir, "keep.txt")
	if err := os.WriteFile(foreign, []byte("x"), 0o600); err != nil {
		t.Fatalf("write foreign file: %v", err)
	}

	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	removed, err := s.Sweep(time.Hour)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale artifact removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("expected fresh artifact kept: %v", err)
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Fatalf("expected foreign file kept: %v", err)
	}
}

func TestSweepMissingDirectory(t *testing.T) {
	s := NewArtifactStore(filepath.Join(t.TempDir(), "nope"), "mp3", nil)
	removed, err := s.Sweep(time.Hour)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected 0 removed, got %d", removed)
	}
}
