package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWatcherEmitsDefinitionChanges(t *testing.T) {
	dir := t.TempDir()
	watcher, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("construct watcher: %v", err)
	}
	defer watcher.Close()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("write txt: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "core.yaml"), []byte("abilities: []"), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	select {
	case name, ok := <-watcher.Events:
		if !ok {
			t.Fatalf("events channel closed before delivery")
		}
		if !strings.HasSuffix(name, "core.yaml") {
			t.Fatalf("expected core.yaml change, got %q", name)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for definition change")
	}
}

func TestWatcherCloseIsIdempotentAndClosesChannels(t *testing.T) {
	dir := t.TempDir()
	watcher, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("construct watcher: %v", err)
	}

	if err := watcher.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := watcher.Close(); err != nil {
		t.Fatalf("second close must be a no-op, got %v", err)
	}

	// Filesystem activity after Close must not panic the run goroutine.
	if err := os.WriteFile(filepath.Join(dir, "late.yaml"), []byte("abilities: []"), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-watcher.Events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("events channel never closed after Close")
		}
	}
}