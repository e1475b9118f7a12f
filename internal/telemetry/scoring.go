// Package telemetry implements the TES (Task Efficacy Score) engine:
// per-run scoring, trend derivation, anomaly detection, and early
// warnings.
package telemetry

import "calyx/internal/calyxmodel"

// Velocity maps duration_s to [0,1], 1.0 at or below fast, 0.0 at or
// above slow, linear in between.
func Velocity(durationS, fast, slow float64) float64 {
	return piecewiseDown(durationS, fast, slow)
}

// Footprint maps changed_files to [0,1], 1.0 at or below 1 file, 0.0 at
// or above 10 files, linear in between.
func Footprint(changedFiles int, lowFiles, highFiles float64) float64 {
	return piecewiseDown(float64(changedFiles), lowFiles, highFiles)
}

// piecewiseDown is 1.0 at x<=lo, 0.0 at x>=hi, and linear between.
func piecewiseDown(x, lo, hi float64) float64 {
	if x <= lo {
		return 1.0
	}
	if x >= hi {
		return 0.0
	}
	return 1.0 - (x-lo)/(hi-lo)
}

// Default velocity breakpoints: 1.0 at or below fast, 0.0 at or above
// slow.
const (
	DefaultFastS = 90.0
	DefaultSlowS = 900.0
)

// Default footprint breakpoints: 1.0 at one changed file, 0.0 at ten or
// more.
const (
	DefaultLowFiles  = 1.0
	DefaultHighFiles = 10.0
)

// TESv2 computes the original composite: 0.5 stability + 0.3 velocity +
// 0.2 footprint, scaled to [0,100].
func TESv2(stability, velocity, footprint float64) float64 {
	return 100 * (0.5*stability + 0.3*velocity + 0.2*footprint)
}

// TESv3 computes the extended composite with compliance/coherence terms,
// each defaulting to stability when absent.
func TESv3(stability, velocity, footprint float64, compliance, coherence *float64) float64 {
	c := stability
	if compliance != nil {
		c = *compliance
	}
	h := stability
	if coherence != nil {
		h = *coherence
	}
	return 100 * (0.4*stability + 0.2*velocity + 0.15*footprint + 0.15*c + 0.10*h)
}

// ScoreRun fills in the derived TES fields of a RunRecord in place,
// leaving fields the caller already populated (duration_s, changed_files,
// stability, compliance, coherence) untouched.
func ScoreRun(r *calyxmodel.RunRecord) {
	velocity := Velocity(r.DurationS, DefaultFastS, DefaultSlowS)
	footprint := Footprint(r.ChangedFiles, DefaultLowFiles, DefaultHighFiles)
	r.Velocity = velocity
	r.Footprint = footprint
	r.TES = TESv2(r.Stability, velocity, footprint)
	r.TESv3 = TESv3(r.Stability, velocity, footprint, r.Compliance, r.Coherence)
}

// GraduatedStability scores a run's stability on a graduated scale: a status other than done always scores 0.0; a done run with
// no failure scores 1.0; a done run that failed its declared goal scores
// partial credit depending on how much autonomy it held — 0.6 in
// tests-only mode (nothing was written), 0.2 in apply/apply_tests mode
// when changes were actually applied, 0.0 otherwise.
func GraduatedStability(status calyxmodel.RunStatus, failed bool, mode calyxmodel.AutonomyMode, applied bool) float64 {
	if status != calyxmodel.RunDone {
		return 0.0
	}
	if !failed {
		return 1.0
	}
	switch {
	case mode == calyxmodel.ModeTests && !applied:
		return 0.6
	case (mode == calyxmodel.ModeApply || mode == calyxmodel.ModeApplyTests) && applied:
		return 0.2
	default:
		return 0.0
	}
}
