package heartbeat

import (
	"os"
	"testing"
	"time"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFabric(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	r := New("scheduler", 1234, "probe", StatusRunning, "v1", map[string]any{"status_message": "ok"})
	if err := f.Write(r); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := f.Read("scheduler")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.ValidationWarning != "" {
		t.Fatalf("unexpected validation warning: %s", got.ValidationWarning)
	}
	if got.ID != r.ID || got.PID != r.PID || got.Phase != r.Phase || got.Status != r.Status {
		t.Fatalf("round trip mismatch: got=%+v want=%+v", got, r)
	}
	if got.Extra["status_message"] != "ok" {
		t.Fatalf("extra not preserved: %+v", got.Extra)
	}
}

func TestReadNotFound(t *testing.T) {
	dir := t.TempDir()
	f, _ := NewFabric(dir)
	_, err := f.Read("nobody")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFreshnessClassification(t *testing.T) {
	dir := t.TempDir()
	f, _ := NewFabric(dir)

	stale := Record{ID: "agent1", TS: float64(time.Now().Add(-10 * time.Minute).UnixNano()) / 1e9, Status: StatusRunning}
	if err := f.Write(stale); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := f.Freshness("agent1", DefaultStalenessTTL); got != Stale {
		t.Fatalf("expected Stale, got %s", got)
	}

	fresh := New("agent2", 1, "run", StatusRunning, "v1", nil)
	if err := f.Write(fresh); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := f.Freshness("agent2", DefaultStalenessTTL); got != Fresh {
		t.Fatalf("expected Fresh, got %s", got)
	}

	if got := f.Freshness("missing-agent", DefaultStalenessTTL); got != Missing {
		t.Fatalf("expected Missing, got %s", got)
	}
}

func TestAggregate(t *testing.T) {
	dir := t.TempDir()
	f, _ := NewFabric(dir)
	_ = f.Write(New("a", 1, "p", StatusRunning, "v1", nil))
	_ = f.Write(New("b", 2, "p", StatusDone, "v1", nil))

	got := f.Aggregate([]string{"a", "b", "c"})
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if _, ok := got["c"]; ok {
		t.Fatalf("did not expect entry for missing component c")
	}
}

func TestBOMTolerance(t *testing.T) {
	dir := t.TempDir()
	f, _ := NewFabric(dir)
	r := New("bomtest", 1, "p", StatusRunning, "v1", nil)
	if err := f.Write(r); err != nil {
		t.Fatalf("Write: %v", err)
	}
	// Simulate a BOM-prefixed file, as some external writers might produce.
	raw, err := os.ReadFile(f.path("bomtest"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	withBOM := append(append([]byte{}, utf8BOM...), raw...)
	if err := os.WriteFile(f.path("bomtest"), withBOM, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := f.Read("bomtest")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.ValidationWarning != "" {
		t.Fatalf("unexpected validation warning: %s", got.ValidationWarning)
	}
	if got.ID != "bomtest" {
		t.Fatalf("expected id bomtest, got %s", got.ID)
	}
}
