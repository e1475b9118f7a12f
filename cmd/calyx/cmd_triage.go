package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"calyx/internal/calyxmodel"
	"calyx/internal/calyxschema"
	"calyx/internal/ids"
	"calyx/internal/subproc"
	"calyx/internal/triage"
)

func cmdTriage(args []string) int {
	var configPath string
	var goalFile string
	maxSteps := 0
	var strict bool
	var runPytest bool
	var pytestArgs string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				return exitBadUsage
			}
			configPath = args[i]
		case "--goal-file":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--goal-file requires a value")
				return exitBadUsage
			}
			goalFile = args[i]
		case "--max-steps":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--max-steps requires a value")
				return exitBadUsage
			}
			n, err := strconv.Atoi(args[i])
			if err != nil {
				fmt.Fprintln(os.Stderr, "--max-steps must be an integer")
				return exitBadUsage
			}
			maxSteps = n
		case "--strict":
			strict = true
		case "--pytest":
			runPytest = true
		case "--pytest-args":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--pytest-args requires a value")
				return exitBadUsage
			}
			pytestArgs = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			return exitBadUsage
		}
	}
	_ = maxSteps // bounds Phase A's own internal step loop, enforced inside the configured agent runner, not by the pipeline shell here.

	if goalFile == "" {
		fmt.Fprintln(os.Stderr, "--goal-file is required")
		return exitBadUsage
	}
	goalBytes, err := os.ReadFile(goalFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitBadUsage
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitBadUsage
	}
	lay := newLayout(cfg)
	if err := os.MkdirAll(lay.proposalsDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInternalInvariant
	}

	execRunner := subproc.NewRunner(subproc.DefaultEnvelopeBytes)

	var phaseARunner triage.Runner = triage.SubprocRunner{
		Exec:    execRunner,
		Command: cfg.Triage.PhaseACommand,
	}

	reviewers := []triage.Reviewer{triage.SecretScanner{}, triage.TestIntegrityChecker{}}

	compiler := triage.CompileallRunner{Exec: execRunner}

	var tests triage.TestRunner
	if runPytest {
		tests = triage.PytestRunner{Exec: execRunner, Args: splitArgs(pytestArgs)}
	}

	orchestratorVersion := "v1"
	pipelineCfg := triage.Config{
		StrictMode:          strict,
		OrchestratorVersion: orchestratorVersion,
		RunPytest:           runPytest,
		SourceRoots:         cfg.Triage.SourceRoots,
	}
	pipeline := triage.New(pipelineCfg, phaseARunner, reviewers, compiler, tests, lay.deploymentLog, lay.proposalsDir)

	intent := calyxmodel.Intent{
		IntentID:   ids.NewPrefixed("intent"),
		ProposedBy: "triage-cli",
		Type:       calyxmodel.IntentCodeChange,
		Goal:       string(goalBytes),
		RiskLevel:  calyxmodel.RiskMedium,
		Status:     calyxmodel.IntentUnderReview,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := calyxschema.Builtin.Validate("intent", intent); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInternalInvariant
	}

	status, err := pipeline.Run(intent)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInternalInvariant
	}

	fmt.Printf("intent_id=%s\n", intent.IntentID)
	fmt.Printf("status=%s\n", status)

	if status == calyxmodel.IntentRejected {
		return exitDomainFailure
	}
	return exitOK
}

func splitArgs(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	var cur []rune
	for _, r := range s {
		if r == ' ' {
			if len(cur) > 0 {
				out = append(out, string(cur))
				cur = nil
			}
			continue
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}
