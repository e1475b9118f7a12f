package eventbus

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchDirDeliversCreateEvent(t *testing.T) {
	dir := t.TempDir()
	b, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	if err := b.WatchDir(dir); err != nil {
		t.Fatalf("WatchDir: %v", err)
	}
	ch, unsub := b.Subscribe()
	defer unsub()

	target := filepath.Join(dir, "new-file.txt")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Kind != Created {
			t.Fatalf("expected a Created event, got %s for %s", ev.Kind, ev.Path)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("expected to observe a filesystem event within 3s")
	}
}

func TestWatchDirIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	b, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	if err := b.WatchDir(dir); err != nil {
		t.Fatalf("first WatchDir: %v", err)
	}
	if err := b.WatchDir(dir); err != nil {
		t.Fatalf("second WatchDir should be a no-op, got error: %v", err)
	}
}
