package calyxmodel

import "time"

// PulseOutcome is the coarse classification a bridge pulse event carries.
type PulseOutcome string

const (
	PulseSuccess PulseOutcome = "success"
	PulseWarn    PulseOutcome = "warn"
	PulseFail    PulseOutcome = "fail"
	PulseInfo    PulseOutcome = "info"
)

// PulseStatus is the GREEN/YELLOW/RED composite assessment.
type PulseStatus string

const (
	PulseGreen  PulseStatus = "GREEN"
	PulseYellow PulseStatus = "YELLOW"
	PulseRed    PulseStatus = "RED"
)

// BridgePulseEvent is stored once per pulse in the Experience Store and is
// never mutated afterward (it may be compacted away after retention_days).
type BridgePulseEvent struct {
	PulseID          string       `json:"pulse_id"`
	Timestamp        time.Time    `json:"timestamp"`
	Summary          string       `json:"summary"`
	CPUPct           float64      `json:"cpu_pct"`
	RAMPct           float64      `json:"ram_pct"`
	GPUPct           *float64     `json:"gpu_pct,omitempty"`
	CapacityScore    float64      `json:"capacity_score"`
	AutonomyMode     AutonomyMode `json:"autonomy_mode"`
	ActiveAgents     int          `json:"active_agents"`
	GatesState       map[string]bool `json:"gates_state"`
	TESScore         *float64     `json:"tes_score,omitempty"`
	Stability        *float64     `json:"stability,omitempty"`
	Velocity         *float64     `json:"velocity,omitempty"`
	Footprint        *float64     `json:"footprint,omitempty"`
	Uptime24h        *float64     `json:"uptime_24h,omitempty"`
	PolicyViolations int          `json:"policy_violations"`
	ManualInterventions int       `json:"manual_interventions"`
	ConfidenceDelta  *float64     `json:"confidence_delta,omitempty"`
	Outcome          PulseOutcome `json:"outcome"`

	// Status is the derived GREEN/YELLOW/RED composite, attached by the
	// bridge pulse controller for convenience when round-tripping through
	// the experience store.
	Status PulseStatus `json:"status,omitempty"`
}
