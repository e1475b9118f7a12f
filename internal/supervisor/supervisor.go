package supervisor

import (
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"calyx/internal/heartbeat"
)

// ServiceSpec declares one singleton service to keep running.
type ServiceSpec struct {
	Name      string
	Signature string   // substring matched against /proc/<pid>/cmdline
	Command   []string // argv used to start the service when absent
	Singleton bool

	MaxRestarts int           // default 3
	WindowSec   time.Duration // default 600s
	BackoffSec  time.Duration // default 300s
}

func (s ServiceSpec) normalized() ServiceSpec {
	if s.MaxRestarts <= 0 {
		s.MaxRestarts = 3
	}
	if s.WindowSec <= 0 {
		s.WindowSec = 600 * time.Second
	}
	if s.BackoffSec <= 0 {
		s.BackoffSec = 300 * time.Second
	}
	return s
}

// serviceState is the supervisor's rolling bookkeeping per service.
type serviceState struct {
	restartTimes  []time.Time
	backoffUntil  time.Time
	lastPID       int
	lastStartErr  error
	killedExtras  int
}

// Supervisor keeps declared services running as singletons. It never kills a process it cannot identify by signature pattern.
type Supervisor struct {
	mu       sync.Mutex
	services []ServiceSpec
	state    map[string]*serviceState
	fabric   *heartbeat.Fabric
	name     string // this supervisor's own heartbeat id
}

// New builds a Supervisor over services, publishing its own heartbeat as
// name through fabric.
func New(name string, services []ServiceSpec, fabric *heartbeat.Fabric) *Supervisor {
	state := make(map[string]*serviceState, len(services))
	normalized := make([]ServiceSpec, len(services))
	for i, svc := range services {
		normalized[i] = svc.normalized()
		state[svc.Name] = &serviceState{}
	}
	return &Supervisor{services: normalized, state: state, fabric: fabric, name: name}
}

// WatchdogResult summarizes one pass over all services.
type WatchdogResult struct {
	Started     []string
	Terminated  map[string]int // service -> extras killed
	Backoff     []string
	StartErrors map[string]error
}

// RunOnce executes one watchdog pass, and
// publishes the supervisor's own heartbeat reflecting the outcome.
func (sv *Supervisor) RunOnce(now time.Time) WatchdogResult {
	sv.mu.Lock()
	services := append([]ServiceSpec(nil), sv.services...)
	sv.mu.Unlock()

	result := WatchdogResult{
		Terminated:  map[string]int{},
		StartErrors: map[string]error{},
	}

	status := heartbeat.StatusRunning
	for _, svc := range services {
		if err := sv.tend(svc, now, &result); err != nil {
			status = heartbeat.StatusWarn
			result.StartErrors[svc.Name] = err
		}
	}

	if sv.fabric != nil && sv.name != "" {
		extra := map[string]any{
			"started":    result.Started,
			"terminated": result.Terminated,
			"backoff":    result.Backoff,
		}
		rec := heartbeat.New(sv.name, 0, "watchdog", status, "v1", extra)
		_ = sv.fabric.Write(rec)
	}

	return result
}

func (sv *Supervisor) tend(svc ServiceSpec, now time.Time, result *WatchdogResult) error {
	st := sv.state[svc.Name]

	matches, err := discover(svc.Signature)
	if err != nil {
		return fmt.Errorf("supervisor: discover %s: %w", svc.Name, err)
	}

	if len(matches) >= 2 && svc.Singleton {
		killed := 0
		for _, m := range matches[1:] {
			if err := syscall.Kill(m.PID, syscall.SIGTERM); err == nil {
				killed++
			}
		}
		result.Terminated[svc.Name] = killed
		sv.mu.Lock()
		st.killedExtras += killed
		sv.mu.Unlock()
	}

	if len(matches) == 0 {
		sv.mu.Lock()
		backoffUntil := st.backoffUntil
		sv.mu.Unlock()

		if now.Before(backoffUntil) {
			result.Backoff = append(result.Backoff, svc.Name)
			return nil
		}

		pid, startErr := sv.start(svc)

		sv.mu.Lock()
		st.restartTimes = append(st.restartTimes, now)
		st.restartTimes = trimWindow(st.restartTimes, now, svc.WindowSec)
		if len(st.restartTimes) >= svc.MaxRestarts {
			st.backoffUntil = now.Add(svc.BackoffSec)
		}
		if startErr == nil {
			st.lastPID = pid
		}
		st.lastStartErr = startErr
		sv.mu.Unlock()

		if startErr != nil {
			return fmt.Errorf("supervisor: start %s: %w", svc.Name, startErr)
		}
		result.Started = append(result.Started, svc.Name)
	}

	return nil
}

func trimWindow(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	out := times[:0:0]
	for _, t := range times {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

func (sv *Supervisor) start(svc ServiceSpec) (int, error) {
	if len(svc.Command) == 0 {
		return 0, fmt.Errorf("no command configured")
	}
	cmd := exec.Command(svc.Command[0], svc.Command[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	go func() { _ = cmd.Wait() }()
	return cmd.Process.Pid, nil
}
