// Package scheduler implements the capacity-aware dispatch loop: each
// tick decides which agents may run, in what autonomy
// mode, subject to the Policy Gate and the current capacity snapshot.
// The tick itself is bounded and non-blocking; dispatch only launches a
// child task and records that it started.
package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"calyx/internal/calyxmodel"
	"calyx/internal/heartbeat"
	"calyx/internal/policy"
)

// CapacitySnapshot is the per-tick resource reading (from C12).
type CapacitySnapshot struct {
	CPUPct float64
	RAMPct float64
}

// Score computes capacity_score = 0.5*(1-cpu/100) + 0.5*(1-ram/100),
// clamped to [0,1].
func (c CapacitySnapshot) Score() float64 {
	s := 0.5*(1-c.CPUPct/100) + 0.5*(1-c.RAMPct/100)
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// LoadMode is the operating posture that widens or tightens guardrails.
type LoadMode string

const (
	LoadNormal   LoadMode = "normal"
	LoadHighLoad LoadMode = "high_load"
)

// AgentSpec is the static configuration of one schedulable agent.
type AgentSpec struct {
	ID          string
	Priority    int // lower wins ties
	MinCapacity float64
	Cooldown    time.Duration
	HeartbeatID string // name under which the agent publishes its heartbeat
}

// agentState is the scheduler's rolling bookkeeping per agent.
type agentState struct {
	cooldownUntil  time.Time
	lastDispatched time.Time
	stabilities    []float64 // most recent N, oldest first
}

const stabilityWindow = 10

// Dispatcher is invoked by the scheduler to actually launch an agent's
// child task. It must not block past the tick; long work runs in the
// background and reports back through the normal run-record/heartbeat
// channels.
type Dispatcher func(agent AgentSpec, mode calyxmodel.AutonomyMode) error

// Scheduler runs the per-tick dispatch algorithm.
type Scheduler struct {
	mu       sync.Mutex
	agents   []AgentSpec
	state    map[string]*agentState
	fabric   *heartbeat.Fabric
	gate     *policy.Gate
	dispatch Dispatcher
	loadMode LoadMode
}

// New builds a Scheduler over agents, reading liveness from fabric and
// gating dispatch through gate. dispatch is called synchronously but must
// itself return promptly (launch-and-return).
func New(agents []AgentSpec, fabric *heartbeat.Fabric, gate *policy.Gate, dispatch Dispatcher) *Scheduler {
	state := make(map[string]*agentState, len(agents))
	for _, a := range agents {
		state[a.ID] = &agentState{}
	}
	return &Scheduler{
		agents:   agents,
		state:    state,
		fabric:   fabric,
		gate:     gate,
		dispatch: dispatch,
		loadMode: LoadNormal,
	}
}

// SetLoadMode changes the guardrail posture applied on subsequent ticks.
func (s *Scheduler) SetLoadMode(mode LoadMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadMode = mode
}

// RecordStability appends a run's stability score to agentID's rolling
// window, trimming to the last stabilityWindow entries.
func (s *Scheduler) RecordStability(agentID string, stability float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.state[agentID]
	if !ok {
		return
	}
	st.stabilities = append(st.stabilities, stability)
	if len(st.stabilities) > stabilityWindow {
		st.stabilities = st.stabilities[len(st.stabilities)-stabilityWindow:]
	}
}

func avg(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// selectMode chooses an autonomy mode from recent average stability:
// safe below 0.6, tests in [0.6,0.8), apply_tests at or
// above 0.8 when the policy permits it (the Policy.Evaluate call in Tick
// is the actual permission check; here we only propose apply_tests and
// let the gate veto it down to tests).
func selectMode(avgStability float64) calyxmodel.AutonomyMode {
	switch {
	case avgStability < 0.6:
		return calyxmodel.ModeSafe
	case avgStability < 0.8:
		return calyxmodel.ModeTests
	default:
		return calyxmodel.ModeApplyTests
	}
}

// TickResult summarizes one tick's decisions, for logging/tests.
type TickResult struct {
	CapacityScore float64
	Dispatched    []string
	Skipped       map[string]string
}

// Tick runs one scheduling pass over agents in priority order. It never
// blocks on the dispatched work itself.
func (s *Scheduler) Tick(now time.Time, capacity CapacitySnapshot) (TickResult, error) {
	s.mu.Lock()
	loadMode := s.loadMode
	agents := append([]AgentSpec(nil), s.agents...)
	s.mu.Unlock()

	sort.SliceStable(agents, func(i, j int) bool {
		if agents[i].Priority != agents[j].Priority {
			return agents[i].Priority < agents[j].Priority
		}
		si, sj := s.state[agents[i].ID], s.state[agents[j].ID]
		return si.lastDispatched.Before(sj.lastDispatched)
	})

	capScore := capacity.Score()
	cpuCeiling, ramCeiling := 100.0, 100.0
	if loadMode == LoadHighLoad {
		cpuCeiling = min(85, cpuCeiling+5)
		ramCeiling = min(80, ramCeiling+3)
	}

	result := TickResult{CapacityScore: capScore, Skipped: map[string]string{}}

	for _, agent := range agents {
		s.mu.Lock()
		st := s.state[agent.ID]
		s.mu.Unlock()

		if capacity.CPUPct > cpuCeiling || capacity.RAMPct > ramCeiling {
			result.Skipped[agent.ID] = "guardrail_ceiling"
			continue
		}

		if agent.HeartbeatID != "" && s.fabric != nil {
			rec, err := s.fabric.Read(agent.HeartbeatID)
			if err == nil {
				fresh := rec.Classify(now, heartbeat.DefaultStalenessTTL) == heartbeat.Fresh
				if fresh && rec.Status == heartbeat.StatusRunning {
					result.Skipped[agent.ID] = "already_running"
					continue
				}
			}
		}

		if now.Before(st.cooldownUntil) {
			result.Skipped[agent.ID] = "cooldown"
			continue
		}

		if capScore < agent.MinCapacity {
			result.Skipped[agent.ID] = "below_min_capacity"
			continue
		}

		s.mu.Lock()
		avgStab := avg(st.stabilities)
		s.mu.Unlock()
		mode := selectMode(avgStab)

		if s.gate != nil {
			decision, err := s.gate.Evaluate("agent_dispatch", fmt.Sprintf("%s/%s", agent.ID, mode), nil)
			if err != nil {
				return result, fmt.Errorf("scheduler: policy evaluate for %s: %w", agent.ID, err)
			}
			if decision.Result != calyxmodel.Allowed {
				if mode == calyxmodel.ModeApplyTests {
					// The gate may permit "tests" even when it denies
					// "apply_tests"; fall back once before giving up.
					decision, err = s.gate.Evaluate("agent_dispatch", fmt.Sprintf("%s/%s", agent.ID, calyxmodel.ModeTests), nil)
					if err == nil && decision.Result == calyxmodel.Allowed {
						mode = calyxmodel.ModeTests
					}
				}
			}
			if decision.Result != calyxmodel.Allowed {
				result.Skipped[agent.ID] = "policy_denied"
				continue
			}
		}

		if s.dispatch != nil {
			if err := s.dispatch(agent, mode); err != nil {
				result.Skipped[agent.ID] = "dispatch_error"
				continue
			}
		}

		s.mu.Lock()
		st.lastDispatched = now
		st.cooldownUntil = now.Add(agent.Cooldown)
		s.mu.Unlock()
		result.Dispatched = append(result.Dispatched, agent.ID)
	}

	return result, nil
}
