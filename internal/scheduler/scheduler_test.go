package scheduler

import (
	"testing"
	"time"

	"calyx/internal/calyxmodel"
	"calyx/internal/heartbeat"
	"calyx/internal/policy"
)

func TestCapacitySnapshotScore(t *testing.T) {
	c := CapacitySnapshot{CPUPct: 20, RAMPct: 40}
	got := c.Score()
	want := 0.5*(1-0.2) + 0.5*(1-0.4)
	if got != want {
		t.Fatalf("Score() = %v, want %v", got, want)
	}
}

func TestSelectModeThresholds(t *testing.T) {
	cases := []struct {
		avg  float64
		want calyxmodel.AutonomyMode
	}{
		{0.1, calyxmodel.ModeSafe},
		{0.59, calyxmodel.ModeSafe},
		{0.6, calyxmodel.ModeTests},
		{0.79, calyxmodel.ModeTests},
		{0.8, calyxmodel.ModeApplyTests},
		{1.0, calyxmodel.ModeApplyTests},
	}
	for _, c := range cases {
		if got := selectMode(c.avg); got != c.want {
			t.Errorf("selectMode(%v) = %s, want %s", c.avg, got, c.want)
		}
	}
}

func TestTickSkipsBelowMinCapacity(t *testing.T) {
	gate := policy.NewGate("")
	gate.Configure([]policy.AllowRule{{RequestType: "*", Pattern: "**"}})

	var dispatched []string
	s := New([]AgentSpec{{ID: "agent1", MinCapacity: 0.9, Cooldown: time.Minute}}, nil, gate,
		func(a AgentSpec, mode calyxmodel.AutonomyMode) error {
			dispatched = append(dispatched, a.ID)
			return nil
		})

	res, err := s.Tick(time.Now(), CapacitySnapshot{CPUPct: 80, RAMPct: 80})
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(dispatched) != 0 {
		t.Fatalf("expected no dispatch below min capacity, got %v", dispatched)
	}
	if res.Skipped["agent1"] != "below_min_capacity" {
		t.Fatalf("expected below_min_capacity skip reason, got %v", res.Skipped)
	}
}

func TestTickDispatchesAndAppliesCooldown(t *testing.T) {
	gate := policy.NewGate("")
	gate.Configure([]policy.AllowRule{{RequestType: "*", Pattern: "**"}})

	var dispatched []string
	s := New([]AgentSpec{{ID: "agent1", MinCapacity: 0.1, Cooldown: time.Hour}}, nil, gate,
		func(a AgentSpec, mode calyxmodel.AutonomyMode) error {
			dispatched = append(dispatched, a.ID)
			return nil
		})

	now := time.Now()
	res, err := s.Tick(now, CapacitySnapshot{CPUPct: 10, RAMPct: 10})
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(res.Dispatched) != 1 || res.Dispatched[0] != "agent1" {
		t.Fatalf("expected agent1 dispatched, got %v", res.Dispatched)
	}

	res2, err := s.Tick(now.Add(time.Second), CapacitySnapshot{CPUPct: 10, RAMPct: 10})
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res2.Skipped["agent1"] != "cooldown" {
		t.Fatalf("expected cooldown skip on second tick, got %v", res2.Skipped)
	}
}

func TestTickSkipsFreshRunningHeartbeat(t *testing.T) {
	dir := t.TempDir()
	fab, err := heartbeat.NewFabric(dir)
	if err != nil {
		t.Fatalf("heartbeat.New: %v", err)
	}
	rec := heartbeat.New("agent1", 123, "working", heartbeat.StatusRunning, "v1", nil)
	if err := fab.Write(rec); err != nil {
		t.Fatalf("Write: %v", err)
	}

	gate := policy.NewGate("")
	gate.Configure([]policy.AllowRule{{RequestType: "*", Pattern: "**"}})

	s := New([]AgentSpec{{ID: "agent1", HeartbeatID: "agent1", MinCapacity: 0.1, Cooldown: time.Minute}}, fab, gate, nil)
	res, err := s.Tick(time.Now(), CapacitySnapshot{CPUPct: 10, RAMPct: 10})
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.Skipped["agent1"] != "already_running" {
		t.Fatalf("expected already_running skip, got %v", res.Skipped)
	}
}

func TestTickSkipsOnPolicyDenied(t *testing.T) {
	gate := policy.NewGate("")
	s := New([]AgentSpec{{ID: "agent1", MinCapacity: 0.1, Cooldown: time.Minute}}, nil, gate, nil)
	res, err := s.Tick(time.Now(), CapacitySnapshot{CPUPct: 10, RAMPct: 10})
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.Skipped["agent1"] != "policy_denied" {
		t.Fatalf("expected policy_denied skip with empty allow-list, got %v", res.Skipped)
	}
}

func TestHighStabilityHistoryPromotesMode(t *testing.T) {
	gate := policy.NewGate("")
	gate.Configure([]policy.AllowRule{{RequestType: "*", Pattern: "**"}})

	var gotMode calyxmodel.AutonomyMode
	s := New([]AgentSpec{{ID: "agent1", MinCapacity: 0.1, Cooldown: time.Minute}}, nil, gate,
		func(a AgentSpec, mode calyxmodel.AutonomyMode) error {
			gotMode = mode
			return nil
		})
	for i := 0; i < 10; i++ {
		s.RecordStability("agent1", 0.92)
	}

	res, err := s.Tick(time.Now(), CapacitySnapshot{CPUPct: 10, RAMPct: 10})
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(res.Dispatched) != 1 {
		t.Fatalf("expected dispatch, got %+v", res)
	}
	if gotMode != calyxmodel.ModeApplyTests {
		t.Fatalf("expected apply_tests for mean stability 0.92, got %s", gotMode)
	}
}

func TestApplyTestsDeniedFallsBackToTests(t *testing.T) {
	gate := policy.NewGate("")
	gate.Configure([]policy.AllowRule{{RequestType: "agent_dispatch", Pattern: "agent1/tests"}})

	var gotMode calyxmodel.AutonomyMode
	s := New([]AgentSpec{{ID: "agent1", MinCapacity: 0.1, Cooldown: time.Minute}}, nil, gate,
		func(a AgentSpec, mode calyxmodel.AutonomyMode) error {
			gotMode = mode
			return nil
		})
	for i := 0; i < 10; i++ {
		s.RecordStability("agent1", 0.95)
	}

	res, err := s.Tick(time.Now(), CapacitySnapshot{CPUPct: 10, RAMPct: 10})
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(res.Dispatched) != 1 {
		t.Fatalf("expected dispatch after fallback, got %+v", res)
	}
	if gotMode != calyxmodel.ModeTests {
		t.Fatalf("expected fallback to tests when apply_tests is denied, got %s", gotMode)
	}
}
