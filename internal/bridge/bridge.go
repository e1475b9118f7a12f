// Package bridge implements the bridge pulse controller: a fixed-cadence
// assessor that reads capacity and TES state,
// computes a GREEN/YELLOW/RED composite, and is report-first — it never
// bypasses the policy gate or lease manager to take corrective
// action itself.
package bridge

import (
	"fmt"
	"strings"
	"time"

	"calyx/internal/calyxmodel"
)

// Cadence is the assessment frequency.
type Cadence string

const (
	Macro Cadence = "macro" // 10 minutes
	Micro Cadence = "micro" // 1 minute
)

// MacroInterval and MicroInterval are the two assessment cadences.
const (
	MacroInterval = 10 * time.Minute
	MicroInterval = 1 * time.Minute
)

// Inputs is one cadence's worth of collected state.
type Inputs struct {
	CPUPct              float64
	RAMPct              float64
	GPUPct              *float64
	MeanTES             float64
	Uptime24h           float64
	ActiveAgents        int
	GatesState          map[string]bool
	PolicyViolations    int
	ManualInterventions int
}

// CapacityScore mirrors the scheduler's capacity_score formula so Bridge
// reports the same figure the Scheduler acted on.
func (in Inputs) CapacityScore() float64 {
	s := 0.5*(1-in.CPUPct/100) + 0.5*(1-in.RAMPct/100)
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// Assess computes the composite pulse status from Inputs, per the
// resolved threshold decision: GREEN when capacity_score>=0.6 AND
// tes_score>=70 AND uptime_24h>=0.9; RED when uptime_24h<0.8 AND
// tes_score<70, OR policy_violations>0; YELLOW otherwise.
func Assess(in Inputs) calyxmodel.PulseStatus {
	capScore := in.CapacityScore()

	if (in.Uptime24h < 0.8 && in.MeanTES < 70) || in.PolicyViolations > 0 {
		return calyxmodel.PulseRed
	}
	if capScore >= 0.6 && in.MeanTES >= 70 && in.Uptime24h >= 0.9 {
		return calyxmodel.PulseGreen
	}
	return calyxmodel.PulseYellow
}

// BuildEvent assembles the structured record persisted to the Experience
// store for this pulse.
func BuildEvent(pulseID string, in Inputs, mode calyxmodel.AutonomyMode, summary string) calyxmodel.BridgePulseEvent {
	capScore := in.CapacityScore()
	status := Assess(in)
	tes := in.MeanTES
	uptime := in.Uptime24h

	outcome := calyxmodel.PulseInfo
	switch status {
	case calyxmodel.PulseGreen:
		outcome = calyxmodel.PulseSuccess
	case calyxmodel.PulseYellow:
		outcome = calyxmodel.PulseWarn
	case calyxmodel.PulseRed:
		outcome = calyxmodel.PulseFail
	}

	return calyxmodel.BridgePulseEvent{
		PulseID:             pulseID,
		Timestamp:           time.Now().UTC(),
		Summary:             summary,
		CPUPct:              in.CPUPct,
		RAMPct:              in.RAMPct,
		GPUPct:              in.GPUPct,
		CapacityScore:       capScore,
		AutonomyMode:        mode,
		ActiveAgents:        in.ActiveAgents,
		GatesState:          in.GatesState,
		TESScore:            &tes,
		Uptime24h:           &uptime,
		PolicyViolations:    in.PolicyViolations,
		ManualInterventions: in.ManualInterventions,
		Outcome:             outcome,
		Status:              status,
	}
}

// Report renders a markdown pulse report, the human-facing artifact
// written alongside the structured experience-store record.
func Report(event calyxmodel.BridgePulseEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Bridge Pulse %s\n\n", event.PulseID)
	fmt.Fprintf(&b, "- status: **%s**\n", event.Status)
	fmt.Fprintf(&b, "- timestamp: %s\n", event.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "- capacity_score: %.2f (cpu=%.1f%% ram=%.1f%%)\n", event.CapacityScore, event.CPUPct, event.RAMPct)
	if event.TESScore != nil {
		fmt.Fprintf(&b, "- tes_score: %.1f\n", *event.TESScore)
	}
	if event.Uptime24h != nil {
		fmt.Fprintf(&b, "- uptime_24h: %.2f\n", *event.Uptime24h)
	}
	fmt.Fprintf(&b, "- active_agents: %d\n", event.ActiveAgents)
	fmt.Fprintf(&b, "- policy_violations: %d\n", event.PolicyViolations)
	fmt.Fprintf(&b, "\n%s\n", event.Summary)
	return b.String()
}
