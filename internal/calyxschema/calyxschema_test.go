package calyxschema

import "testing"

func TestValidateHeartbeat(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	good := map[string]any{
		"id": "scheduler", "pid": 123, "ts": 1700000000.0, "status": "running",
		"legacy_extras": map[string]any{"anything": "goes"},
	}
	if err := r.Validate("heartbeat", good); err != nil {
		t.Fatalf("expected valid heartbeat, got %v", err)
	}

	bad := map[string]any{"id": "scheduler", "pid": 123, "ts": 1.0, "status": "bogus"}
	if err := r.Validate("heartbeat", bad); err == nil {
		t.Fatalf("expected invalid status to fail validation")
	}

	missing := map[string]any{"pid": 1, "ts": 1.0, "status": "running"}
	if err := r.Validate("heartbeat", missing); err == nil {
		t.Fatalf("expected missing id to fail validation")
	}
}

func TestValidateRunRecordRange(t *testing.T) {
	r, _ := NewRegistry()
	rec := map[string]any{
		"iso_ts": "2026-07-31T00:00:00Z", "tes": 150.0, "stability": 1.0, "status": "done",
	}
	if err := r.Validate("run_record", rec); err == nil {
		t.Fatalf("expected tes>100 to fail validation")
	}
}
