package subproc

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRunSuccessCapturesStdout(t *testing.T) {
	r := NewRunner(DefaultEnvelopeBytes)
	res, err := r.Run(context.Background(), "echo-test", []string{"echo", "hello"}, 5*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusOK {
		t.Fatalf("expected StatusOK, got %s", res.Status)
	}
	if !strings.Contains(res.Stdout, "hello") {
		t.Fatalf("expected stdout to contain 'hello', got %q", res.Stdout)
	}
}

func TestRunTimeoutReportsStatusTimeout(t *testing.T) {
	r := NewRunner(DefaultEnvelopeBytes)
	res, err := r.Run(context.Background(), "sleep-test", []string{"sleep", "5"}, 50*time.Millisecond)
	if err == nil {
		t.Fatalf("expected a timeout error")
	}
	if res.Status != StatusTimeout {
		t.Fatalf("expected StatusTimeout, got %s", res.Status)
	}
}

func TestRunMissingBinaryReportsStatusError(t *testing.T) {
	r := NewRunner(DefaultEnvelopeBytes)
	res, err := r.Run(context.Background(), "missing-test", []string{"/nonexistent-binary-calyx"}, time.Second)
	if err == nil {
		t.Fatalf("expected an error for a missing binary")
	}
	if res.Status != StatusError {
		t.Fatalf("expected StatusError, got %s", res.Status)
	}
}

func TestTruncateEnvelopeRespectsMax(t *testing.T) {
	big := strings.Repeat("x", 100)
	out := truncateEnvelope(big, 20)
	if out == big {
		t.Fatalf("expected truncation to change the string")
	}
	if !strings.Contains(out, "truncated") {
		t.Fatalf("expected an explicit truncation marker")
	}
}

func TestCircuitBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	r := NewRunner(DefaultEnvelopeBytes)
	var lastErr error
	for i := 0; i < 5; i++ {
		_, lastErr = r.Run(context.Background(), "flaky-test", []string{"/nonexistent-binary-calyx"}, time.Second)
	}
	if lastErr == nil {
		t.Fatalf("expected an error once the breaker trips or the command keeps failing")
	}
}
