package experience

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"calyx/internal/calyxmodel"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "experience.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleEvent(id string, ts time.Time, summary string) calyxmodel.BridgePulseEvent {
	tes := 75.0
	return calyxmodel.BridgePulseEvent{
		PulseID:      id,
		Timestamp:    ts,
		Summary:      summary,
		CPUPct:       20,
		RAMPct:       30,
		CapacityScore: 0.8,
		GatesState:   map[string]bool{"policy": true},
		TESScore:     &tes,
		Outcome:      calyxmodel.PulseSuccess,
		Status:       calyxmodel.PulseGreen,
	}
}

func TestRecordBridgePulseRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ev := sampleEvent("pulse-1", time.Now().UTC(), "capacity nominal, all gates green")
	id, err := s.RecordBridgePulse(ctx, ev)
	if err != nil {
		t.Fatalf("RecordBridgePulse: %v", err)
	}
	if id != "pulse-1" {
		t.Fatalf("expected event_id pulse-1, got %s", id)
	}

	events, err := s.RecentEvents(ctx, 24, 10)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 recent event, got %d", len(events))
	}
}

func TestRecallFindsSimilarSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _ = s.RecordBridgePulse(ctx, sampleEvent("pulse-1", time.Now().UTC(), "scheduler dispatched agent1 in safe mode"))
	_, _ = s.RecordBridgePulse(ctx, sampleEvent("pulse-2", time.Now().UTC(), "unrelated summary about disk cleanup"))

	results, err := s.Recall(ctx, "scheduler dispatched agent1", 0.2, 5, nil)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(results) == 0 || results[0].EventID != "pulse-1" {
		t.Fatalf("expected pulse-1 ranked first, got %+v", results)
	}
}

func TestCompactRemovesOldEventsAndIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := sampleEvent("pulse-old", time.Now().UTC().Add(-40*24*time.Hour), "ancient pulse")
	recent := sampleEvent("pulse-recent", time.Now().UTC(), "recent pulse")
	if _, err := s.RecordBridgePulse(ctx, old); err != nil {
		t.Fatalf("RecordBridgePulse old: %v", err)
	}
	if _, err := s.RecordBridgePulse(ctx, recent); err != nil {
		t.Fatalf("RecordBridgePulse recent: %v", err)
	}

	if err := s.Compact(ctx, DefaultRetentionDays); err != nil {
		t.Fatalf("Compact: %v", err)
	}

	events, err := s.RecentEvents(ctx, 24*365, 10)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(events) != 1 || events[0].EventID != "pulse-recent" {
		t.Fatalf("expected only pulse-recent to survive compaction, got %+v", events)
	}

	if err := s.Compact(ctx, DefaultRetentionDays); err != nil {
		t.Fatalf("second Compact call should also succeed (idempotent): %v", err)
	}
	events2, err := s.RecentEvents(ctx, 24*365, 10)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(events2) != len(events) {
		t.Fatalf("expected compaction to be idempotent, got %d then %d events", len(events), len(events2))
	}
}
