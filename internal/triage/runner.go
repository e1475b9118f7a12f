package triage

import (
	"context"
	"fmt"
	"time"

	"calyx/internal/calyxmodel"
	"calyx/internal/subproc"
)

// SubprocRunner implements Runner by invoking an external agent
// executable and expecting it to have written plan.json/audit.json/
// change.patch/metadata.json into runDir by the time it exits.
type SubprocRunner struct {
	Exec    *subproc.Runner
	Command []string // argv prefix; goal and run_dir are appended
	Timeout time.Duration
}

func (r SubprocRunner) Propose(intent calyxmodel.Intent, runDir string) error {
	if len(r.Command) == 0 {
		return fmt.Errorf("triage: no phase-A command configured")
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	argv := append(append([]string(nil), r.Command...), intent.Goal, runDir)
	res, err := r.Exec.Run(context.Background(), "triage-phase-a-"+intent.IntentID, argv, timeout)
	if err != nil {
		return fmt.Errorf("triage: phase a: %w (stderr: %s)", err, res.Stderr)
	}
	return nil
}

// CompileallRunner implements Compiler by shelling out to
// python -m compileall over the declared source roots. A compile error is
// the critical phase-C failure; pytest, when enabled, runs after it.
type CompileallRunner struct {
	Exec    *subproc.Runner
	Timeout time.Duration
}

func (r CompileallRunner) Compile(sourceRoots []string) (bool, string, error) {
	if len(sourceRoots) == 0 {
		return true, "", nil
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	argv := append([]string{"python3", "-m", "compileall", "-q"}, sourceRoots...)
	res, err := r.Exec.Run(context.Background(), "triage-phase-c-compile", argv, timeout)
	output := res.Stdout + res.Stderr
	if err != nil {
		return false, output, nil
	}
	return res.Status == subproc.StatusOK, output, nil
}

// PytestRunner implements TestRunner by shelling out to pytest
// (--pytest/--pytest-args on the triage subcommand).
type PytestRunner struct {
	Exec    *subproc.Runner
	Args    []string
	Timeout time.Duration
}

func (r PytestRunner) RunTests(sourceRoots []string) (bool, string, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	argv := append([]string{"pytest"}, r.Args...)
	argv = append(argv, sourceRoots...)
	res, err := r.Exec.Run(context.Background(), "triage-phase-c", argv, timeout)
	output := res.Stdout + res.Stderr
	if err != nil {
		return false, output, nil
	}
	return res.Status == subproc.StatusOK, output, nil
}
