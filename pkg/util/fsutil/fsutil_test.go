package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTouchCreatesFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "logs", "session.jsonl")

	if err := Touch(target); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}

	info, err := os.Stat(target)
	if err != nil {
		t.Fatalf("expected file to exist - %v", err)
	}

	if info.IsDir() {
		t.Error("expected a regular file")
	}
}

func TestTouchExistingFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "probe.json")
	if err := os.WriteFile(target, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Touch(target); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}

	if string(data) != "{}" {
		t.Errorf("expected file content to be preserved, got %q", string(data))
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	if !Exists(dir) {
		t.Error("expected Exists to be true for an existing directory")
	}

	if Exists(filepath.Join(dir, "missing")) {
		t.Error("expected Exists to be false for a missing path")
	}
}

func TestFileDir(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "report.json")

	if got := FileDir(target); got != dir {
		t.Errorf("FileDir() = %q, want %q", got, dir)
	}
}
