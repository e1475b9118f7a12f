package telemetry

import "calyx/internal/calyxmodel"

// WarningKind enumerates the early-warning categories.
type WarningKind string

const (
	WarningTESDecline         WarningKind = "tes_decline"
	WarningHighMemory         WarningKind = "high_memory"
	WarningFailureRisk        WarningKind = "failure_risk"
	WarningResourceExhaustion WarningKind = "resource_exhaustion"
)

// Warning is one early-warning event, emitted at most once per window per
// kind by the caller (Emitter tracks that).
type Warning struct {
	Kind    WarningKind
	Detail  string
}

// FailureRisk estimates the probability of a near-term failure from the
// recent stability history: risk rises as recent stability falls below
// 1.0, weighted toward the most recent runs.
func FailureRisk(recentStabilities []float64) float64 {
	if len(recentStabilities) == 0 {
		return 0
	}
	var weightedSum, weightTotal float64
	for i, s := range recentStabilities {
		weight := float64(i + 1) // later entries weigh more
		weightedSum += weight * (1 - s)
		weightTotal += weight
	}
	if weightTotal == 0 {
		return 0
	}
	risk := weightedSum / weightTotal
	if risk < 0 {
		return 0
	}
	if risk > 1 {
		return 1
	}
	return risk
}

// Emitter tracks which (kind) warnings have already fired in the current
// window, so callers emit each kind at most once per window.
type Emitter struct {
	fired map[WarningKind]bool
}

// NewEmitter creates an Emitter for a fresh window.
func NewEmitter() *Emitter {
	return &Emitter{fired: map[WarningKind]bool{}}
}

// Reset clears fired state, starting a new window.
func (e *Emitter) Reset() {
	e.fired = map[WarningKind]bool{}
}

// Assess evaluates all early-warning conditions against the given inputs
// and returns the ones that should fire, marking them fired for this
// window.
func (e *Emitter) Assess(tesHistory []float64, memPct float64, recentStabilities []float64, resourceExhaustionPredicted bool) []Warning {
	var warnings []Warning

	if len(tesHistory) >= 10 {
		last10 := lastN(tesHistory, 10)
		first := last10[0]
		last := last10[len(last10)-1]
		if first-last >= 5 && !e.fired[WarningTESDecline] {
			warnings = append(warnings, Warning{Kind: WarningTESDecline, Detail: "tes declined >=5 points over last 10 runs"})
			e.fired[WarningTESDecline] = true
		}
	}

	if memPct > 75 && !e.fired[WarningHighMemory] {
		warnings = append(warnings, Warning{Kind: WarningHighMemory, Detail: "memory usage above 75%"})
		e.fired[WarningHighMemory] = true
	}

	if risk := FailureRisk(recentStabilities); risk >= 0.3 && !e.fired[WarningFailureRisk] {
		warnings = append(warnings, Warning{Kind: WarningFailureRisk, Detail: "predicted failure risk >= 0.3"})
		e.fired[WarningFailureRisk] = true
	}

	if resourceExhaustionPredicted && !e.fired[WarningResourceExhaustion] {
		warnings = append(warnings, Warning{Kind: WarningResourceExhaustion, Detail: "resource exhaustion predicted"})
		e.fired[WarningResourceExhaustion] = true
	}

	return warnings
}

// HintPolicy suggests loosening autonomy guardrails when a run is both
// stable and fast.
func HintPolicy(stability, velocity float64, mode calyxmodel.AutonomyMode) string {
	if stability >= 0.8 && velocity >= 0.5 {
		switch mode {
		case calyxmodel.ModeSafe:
			return "Consider enabling --run-tests"
		case calyxmodel.ModeTests:
			return "Consider enabling --apply --run-tests"
		}
	}
	return ""
}
