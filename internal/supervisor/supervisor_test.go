package supervisor

import (
	"os/exec"
	"syscall"
	"testing"
	"time"
)

func TestTrimWindowDropsOldEntries(t *testing.T) {
	now := time.Now()
	times := []time.Time{
		now.Add(-20 * time.Minute),
		now.Add(-5 * time.Minute),
		now.Add(-1 * time.Minute),
	}
	got := trimWindow(times, now, 10*time.Minute)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries within the 10m window, got %d", len(got))
	}
}

func TestServiceSpecNormalizedDefaults(t *testing.T) {
	s := ServiceSpec{Name: "svc"}.normalized()
	if s.MaxRestarts != 3 {
		t.Errorf("expected default MaxRestarts=3, got %d", s.MaxRestarts)
	}
	if s.WindowSec != 600*time.Second {
		t.Errorf("expected default WindowSec=600s, got %v", s.WindowSec)
	}
	if s.BackoffSec != 300*time.Second {
		t.Errorf("expected default BackoffSec=300s, got %v", s.BackoffSec)
	}
}

func TestRunOnceStartsMissingService(t *testing.T) {
	svc := ServiceSpec{
		Name:      "sleeper",
		Signature: "calyx-test-sleeper-signature-unique-12345",
		Command:   []string{"sleep", "30"},
		Singleton: true,
	}
	sv := New("supervisor", []ServiceSpec{svc}, nil)

	res := sv.RunOnce(time.Now())
	if len(res.Started) != 1 || res.Started[0] != "sleeper" {
		t.Fatalf("expected sleeper started, got %+v", res)
	}

	pid := sv.state["sleeper"].lastPID
	if pid > 0 {
		_ = syscall.Kill(pid, syscall.SIGKILL)
	}
}

func TestBackoffEngagesAfterMaxRestarts(t *testing.T) {
	svc := ServiceSpec{
		Name:        "flaky",
		Signature:   "calyx-test-flaky-signature-unique-67890",
		Command:     []string{"/nonexistent-binary-calyx-test"},
		Singleton:   true,
		MaxRestarts: 2,
		WindowSec:   time.Minute,
		BackoffSec:  time.Hour,
	}
	sv := New("supervisor", []ServiceSpec{svc}, nil)

	now := time.Now()
	sv.RunOnce(now)
	sv.RunOnce(now.Add(time.Second))

	st := sv.state["flaky"]
	if st.backoffUntil.Before(now.Add(time.Hour - time.Minute)) {
		t.Fatalf("expected backoff engaged after max restarts, backoffUntil=%v", st.backoffUntil)
	}

	res := sv.RunOnce(now.Add(2 * time.Second))
	if len(res.Backoff) != 1 || res.Backoff[0] != "flaky" {
		t.Fatalf("expected flaky reported in backoff, got %+v", res)
	}
}

func TestRunOncePrunesDuplicateSingletons(t *testing.T) {
	marker := "calyx-test-dup-signature-24680"
	c1 := exec.Command("sh", "-c", "sleep 300", marker)
	if err := c1.Start(); err != nil {
		t.Skipf("cannot start helper process: %v", err)
	}
	c2 := exec.Command("sh", "-c", "sleep 300", marker)
	if err := c2.Start(); err != nil {
		_ = c1.Process.Kill()
		t.Skipf("cannot start helper process: %v", err)
	}
	defer func() {
		_ = c1.Process.Kill()
		_ = c2.Process.Kill()
		_, _ = c1.Process.Wait()
		_, _ = c2.Process.Wait()
	}()

	svc := ServiceSpec{Name: "dup", Signature: marker, Singleton: true}
	sv := New("supervisor", []ServiceSpec{svc}, nil)

	res := sv.RunOnce(time.Now())
	if res.Terminated["dup"] != 1 {
		t.Fatalf("expected exactly one duplicate terminated, got %+v", res.Terminated)
	}
}
