// Package subproc runs external commands with an explicit timeout and a
// bounded output envelope: on expiry the child is terminated, its partial
// stdout truncated to an 8 KB head/tail envelope with an explicit
// omission marker, and a record with status TIMEOUT is emitted. Repeated
// failures trip a circuit breaker (sony/gobreaker) so a wedged external
// tool doesn't get retried into the ground.
package subproc

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// DefaultEnvelopeBytes caps captured subprocess output.
const DefaultEnvelopeBytes = 8 * 1024

// Status is the terminal status of a subprocess invocation.
type Status string

const (
	StatusOK      Status = "ok"
	StatusError   Status = "error"
	StatusTimeout Status = "timeout"
)

// Result is the structured record emitted for one subprocess invocation.
type Result struct {
	Command    []string  `json:"command"`
	Status     Status    `json:"status"`
	ExitCode   int       `json:"exit_code"`
	Stdout     string    `json:"stdout"`
	Stderr     string    `json:"stderr"`
	DurationMS int64     `json:"duration_ms"`
	StartedAt  time.Time `json:"started_at"`
}

// Runner executes subprocesses with a circuit breaker around repeated
// failures for a given command signature. Safe for concurrent use; each
// dispatch goroutine shares the same breaker per command name.
type Runner struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	envelope int
}

// NewRunner creates a Runner with the given output envelope size
// (DefaultEnvelopeBytes if <= 0).
func NewRunner(envelopeBytes int) *Runner {
	if envelopeBytes <= 0 {
		envelopeBytes = DefaultEnvelopeBytes
	}
	return &Runner{breakers: map[string]*gobreaker.CircuitBreaker{}, envelope: envelopeBytes}
}

func (r *Runner) breakerFor(name string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	r.breakers[name] = b
	return b
}

// Run executes argv under the given timeout, truncating captured
// stdout/stderr to the configured envelope. A tripped circuit breaker for
// this command's name returns an error without attempting to run it.
func (r *Runner) Run(ctx context.Context, name string, argv []string, timeout time.Duration) (Result, error) {
	breaker := r.breakerFor(name)

	raw, err := breaker.Execute(func() (any, error) {
		return r.runOnce(ctx, argv, timeout)
	})
	if res, ok := raw.(Result); ok {
		return res, err
	}
	return Result{Command: argv, Status: StatusError}, err
}

func (r *Runner) runOnce(ctx context.Context, argv []string, timeout time.Duration) (Result, error) {
	if len(argv) == 0 {
		return Result{}, fmt.Errorf("subproc: empty command")
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	result := Result{
		Command:    argv,
		Stdout:     truncateEnvelope(stdout.String(), r.envelope),
		Stderr:     truncateEnvelope(stderr.String(), r.envelope),
		DurationMS: duration.Milliseconds(),
		StartedAt:  start.UTC(),
	}

	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		result.Status = StatusTimeout
		return result, fmt.Errorf("subproc: %v: timed out after %s", argv, timeout)
	case runErr != nil:
		result.Status = StatusError
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, fmt.Errorf("subproc: %v: %w", argv, runErr)
	default:
		result.Status = StatusOK
		return result, nil
	}
}

// truncateEnvelope head/tail-splits s down to max bytes, leaving an
// explicit marker about the omitted middle.
func truncateEnvelope(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	removed := len(s) - max
	headCount := max / 2
	tailCount := max - headCount
	marker := fmt.Sprintf("\n\n[truncated: %d bytes omitted from the middle]\n\n", removed)
	return s[:headCount] + marker + s[len(s)-tailCount:]
}
