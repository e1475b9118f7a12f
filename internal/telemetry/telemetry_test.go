package telemetry

import (
	"math"
	"testing"

	"calyx/internal/calyxmodel"
)

func approxEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestVelocityPiecewise(t *testing.T) {
	if v := Velocity(10, DefaultFastS, DefaultSlowS); v != 1.0 {
		t.Errorf("Velocity(10) = %v, want 1.0", v)
	}
	if v := Velocity(1000, DefaultFastS, DefaultSlowS); v != 0.0 {
		t.Errorf("Velocity(1000) = %v, want 0.0", v)
	}
	mid := Velocity((DefaultFastS+DefaultSlowS)/2, DefaultFastS, DefaultSlowS)
	if !approxEqual(mid, 0.5) {
		t.Errorf("Velocity(midpoint) = %v, want 0.5", mid)
	}
}

func TestFootprintPiecewise(t *testing.T) {
	if f := Footprint(1, DefaultLowFiles, DefaultHighFiles); f != 1.0 {
		t.Errorf("Footprint(1) = %v, want 1.0", f)
	}
	if f := Footprint(10, DefaultLowFiles, DefaultHighFiles); f != 0.0 {
		t.Errorf("Footprint(10) = %v, want 0.0", f)
	}
}

func TestTESv2AndV3(t *testing.T) {
	v2 := TESv2(1.0, 1.0, 1.0)
	if !approxEqual(v2, 100) {
		t.Errorf("TESv2 perfect run = %v, want 100", v2)
	}
	v3 := TESv3(1.0, 1.0, 1.0, nil, nil)
	if !approxEqual(v3, 100) {
		t.Errorf("TESv3 perfect run with default compliance/coherence = %v, want 100", v3)
	}
}

func TestScoreRunFillsDerivedFields(t *testing.T) {
	r := &calyxmodel.RunRecord{DurationS: 10, ChangedFiles: 1, Stability: 1.0}
	ScoreRun(r)
	if !approxEqual(r.TES, 100) {
		t.Errorf("ScoreRun TES = %v, want 100", r.TES)
	}
}

func TestGraduatedStabilityFailedRunPartialCredit(t *testing.T) {
	if s := GraduatedStability(calyxmodel.RunDone, true, calyxmodel.ModeTests, false); s != 0.6 {
		t.Errorf("tests-mode failed run = %v, want 0.6", s)
	}
	if s := GraduatedStability(calyxmodel.RunDone, true, calyxmodel.ModeApplyTests, true); s != 0.2 {
		t.Errorf("applied apply_tests failed run = %v, want 0.2", s)
	}
	if s := GraduatedStability(calyxmodel.RunDone, true, calyxmodel.ModeApply, false); s != 0.0 {
		t.Errorf("un-applied apply-mode failed run = %v, want 0.0", s)
	}
	if GraduatedStability(calyxmodel.RunDone, false, calyxmodel.ModeSafe, false) != 1.0 {
		t.Errorf("expected full credit for a successful done run")
	}
	if GraduatedStability(calyxmodel.RunFail, false, calyxmodel.ModeSafe, false) != 0.0 {
		t.Errorf("expected zero credit for a non-done run")
	}
	if GraduatedStability(calyxmodel.RunTimeout, false, calyxmodel.ModeSafe, false) != 0.0 {
		t.Errorf("expected zero credit for a non-done run")
	}
}

func TestTrendClassification(t *testing.T) {
	declining := []float64{90, 89, 88, 87, 86, 85, 84, 83, 82, 81, 80, 79, 78, 77, 76, 75, 74, 73, 72, 71}
	_, _, class := Trend(declining)
	if class != TrendDeclining {
		t.Errorf("expected declining trend, got %s", class)
	}

	stable := make([]float64, 20)
	for i := range stable {
		stable[i] = 80
	}
	_, _, class = Trend(stable)
	if class != TrendStable {
		t.Errorf("expected stable trend, got %s", class)
	}
}

func TestBaselineAnomalyDetection(t *testing.T) {
	b := NewBaseline(50)
	for i := 0; i < 30; i++ {
		b.Observe(50)
	}
	_, sev := b.Check(50)
	if sev != SeverityNone {
		t.Errorf("expected no anomaly on a constant baseline reading, got %s", sev)
	}
	z, sev := b.Check(1000)
	if sev == SeverityNone {
		t.Errorf("expected an anomaly for a wildly out-of-band reading, z=%v", z)
	}
}

func TestFailureRiskWeightsRecentRunsMore(t *testing.T) {
	improving := []float64{0.0, 0.0, 1.0, 1.0, 1.0}
	declining := []float64{1.0, 1.0, 1.0, 0.0, 0.0}
	if FailureRisk(declining) <= FailureRisk(improving) {
		t.Errorf("expected declining-tail history to carry higher failure risk")
	}
}

func TestEmitterFiresEachWarningOncePerWindow(t *testing.T) {
	e := NewEmitter()
	tesHistory := []float64{90, 89, 88, 87, 86, 85, 84, 83, 82, 80}
	w1 := e.Assess(tesHistory, 80, []float64{0.5}, false)
	if len(w1) == 0 {
		t.Fatalf("expected at least one warning on first assess")
	}
	w2 := e.Assess(tesHistory, 80, []float64{0.5}, false)
	for _, w := range w2 {
		if w.Kind == WarningTESDecline || w.Kind == WarningHighMemory {
			t.Errorf("expected %s not to re-fire within the same window", w.Kind)
		}
	}
}

func TestHintPolicySuggestsPromotion(t *testing.T) {
	if got := HintPolicy(0.9, 0.9, calyxmodel.ModeSafe); got == "" {
		t.Errorf("expected a hint for stable+fast safe-mode run")
	}
	if got := HintPolicy(0.9, 0.9, calyxmodel.ModeTests); got != "Consider enabling --apply --run-tests" {
		t.Errorf("unexpected hint text: %q", got)
	}
	if got := HintPolicy(0.1, 0.1, calyxmodel.ModeSafe); got != "" {
		t.Errorf("expected no hint for unstable/slow run, got %q", got)
	}
}
