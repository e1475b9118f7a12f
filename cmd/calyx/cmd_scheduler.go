package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"calyx/internal/artifact"
	"calyx/internal/calyxconfig"
	"calyx/internal/calyxmodel"
	"calyx/internal/calyxschema"
	"calyx/internal/eventbus"
	"calyx/internal/heartbeat"
	"calyx/internal/policy"
	"calyx/internal/probe"
	"calyx/internal/scheduler"
	"calyx/internal/subproc"
	"calyx/internal/telemetry"
)

const defaultAgentWallclockTimeout = 5 * time.Minute

func cmdScheduler(args []string) int {
	var configPath string
	intervalSec := 30
	var forcedMode string
	var autoPromote bool
	promoteAfter := 0
	cooldownMins := 0
	var once bool

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				return exitBadUsage
			}
			configPath = args[i]
		case "--interval":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--interval requires a value")
				return exitBadUsage
			}
			n, err := strconv.Atoi(args[i])
			if err != nil {
				fmt.Fprintln(os.Stderr, "--interval must be an integer")
				return exitBadUsage
			}
			intervalSec = n
		case "--mode":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--mode requires a value")
				return exitBadUsage
			}
			forcedMode = args[i]
		case "--auto-promote":
			autoPromote = true
		case "--promote-after":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--promote-after requires a value")
				return exitBadUsage
			}
			n, err := strconv.Atoi(args[i])
			if err != nil {
				fmt.Fprintln(os.Stderr, "--promote-after must be an integer")
				return exitBadUsage
			}
			promoteAfter = n
		case "--cooldown-mins":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--cooldown-mins requires a value")
				return exitBadUsage
			}
			n, err := strconv.Atoi(args[i])
			if err != nil {
				fmt.Fprintln(os.Stderr, "--cooldown-mins must be an integer")
				return exitBadUsage
			}
			cooldownMins = n
		case "--once":
			once = true
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			return exitBadUsage
		}
	}
	// --mode/--auto-promote/--promote-after are accepted for operator
	// tooling compatibility; mode selection itself stays stability-driven
	// (internal/scheduler.selectMode), so these flags do not override the
	// per-agent algorithm here.
	_ = forcedMode
	_ = autoPromote
	_ = promoteAfter

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitBadUsage
	}
	lay := newLayout(cfg)
	if err := os.MkdirAll(lay.outgoingDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInternalInvariant
	}
	if err := os.MkdirAll(lay.logsDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInternalInvariant
	}
	if err := os.MkdirAll(lay.proposalsDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInternalInvariant
	}

	fabric, err := heartbeat.NewFabric(lay.outgoingDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInternalInvariant
	}
	gate := policy.NewGate(lay.decisionLog)
	gate.Configure(toAllowRules(cfg.AllowRules))

	sched := buildScheduler(cfg, fabric, gate, lay, cooldownMins)

	loadMode := scheduler.LoadNormal
	if cfg.LoadMode == "high_load" {
		loadMode = scheduler.LoadHighLoad
	}
	sched.SetLoadMode(loadMode)

	tick := func(now time.Time) error {
		snap, err := probe.Sample(context.Background(), "/")
		if err != nil {
			return err
		}
		_ = artifact.AppendJSONL(lay.snapshotsLog, snap, false)
		if top, err := probe.TopProcesses(context.Background(), 5); err == nil {
			_ = artifact.AppendJSONL(lay.topProcsLog, struct {
				Timestamp time.Time            `json:"timestamp"`
				Processes []probe.ProcessRecord `json:"processes"`
			}{Timestamp: now, Processes: top}, false)
		}
		cap := scheduler.CapacitySnapshot{CPUPct: snap.CPUPct, RAMPct: snap.RAMPct}
		_, err = sched.Tick(now, cap)
		return err
	}

	if once {
		if err := tick(time.Now()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitDomainFailure
		}
		return exitOK
	}

	ticker := time.NewTicker(time.Duration(intervalSec) * time.Second)
	defer ticker.Stop()

	// A proposal landing in proposalsDir should not wait out a full
	// interval before the scheduler reacts to it; watch the directory and
	// tick early on any change, with the ticker as the non-polling
	// fallback cadence.
	var wake <-chan eventbus.Event
	if bus, err := eventbus.New(); err == nil {
		defer bus.Close()
		if err := bus.WatchDir(lay.proposalsDir); err == nil {
			ch, _ := bus.Subscribe()
			wake = ch
		}
	}

	for {
		select {
		case <-ticker.C:
			if err := tick(time.Now()); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		case _, ok := <-wake:
			if !ok {
				wake = nil
				continue
			}
			if err := tick(time.Now()); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		}
	}
}

func toAllowRules(rules []calyxconfig.PolicyRuleConfig) []policy.AllowRule {
	out := make([]policy.AllowRule, 0, len(rules))
	for _, r := range rules {
		out = append(out, policy.AllowRule{RequestType: r.RequestType, Pattern: r.Pattern})
	}
	return out
}

// buildScheduler wires a Scheduler whose Dispatcher launches each agent's
// configured command as a child subprocess and records the outcome as a
// TES run.
func buildScheduler(cfg calyxconfig.Config, fabric *heartbeat.Fabric, gate *policy.Gate, lay layout, cooldownMinsOverride int) *scheduler.Scheduler {
	runner := subproc.NewRunner(subproc.DefaultEnvelopeBytes)

	agents := make([]scheduler.AgentSpec, 0, len(cfg.Agents))
	commands := map[string][]string{}
	for _, a := range cfg.Agents {
		cooldown := time.Duration(a.CooldownSec) * time.Second
		if cooldownMinsOverride > 0 {
			cooldown = time.Duration(cooldownMinsOverride) * time.Minute
		}
		agents = append(agents, scheduler.AgentSpec{
			ID:          a.ID,
			Priority:    a.Priority,
			MinCapacity: a.MinCapacity,
			Cooldown:    cooldown,
			HeartbeatID: a.HeartbeatID,
		})
		commands[a.ID] = a.Command
	}

	var sched *scheduler.Scheduler
	dispatch := func(agent scheduler.AgentSpec, mode calyxmodel.AutonomyMode) error {
		argv := commands[agent.ID]
		if len(argv) == 0 {
			return nil
		}
		go runAgentOnce(runner, sched, agent, mode, argv, lay)
		return nil
	}
	sched = scheduler.New(agents, fabric, gate, dispatch)
	return sched
}

func runAgentOnce(runner *subproc.Runner, sched *scheduler.Scheduler, agent scheduler.AgentSpec, mode calyxmodel.AutonomyMode, argv []string, lay layout) {
	ctx := context.Background()
	start := time.Now()
	res, _ := runner.Run(ctx, agent.ID, argv, defaultAgentWallclockTimeout)

	status := calyxmodel.RunDone
	switch res.Status {
	case subproc.StatusTimeout:
		status = calyxmodel.RunTimeout
	case subproc.StatusError:
		status = calyxmodel.RunFail
	}
	failed := status != calyxmodel.RunDone
	applied := (mode == calyxmodel.ModeApply || mode == calyxmodel.ModeApplyTests) && status == calyxmodel.RunDone
	stability := telemetry.GraduatedStability(status, failed, mode, applied)
	sched.RecordStability(agent.ID, stability)

	record := calyxmodel.RunRecord{
		ISOTs:         start.UTC().Format(time.RFC3339),
		DurationS:     time.Since(start).Seconds(),
		Status:        status,
		Failed:        failed,
		Applied:       applied,
		Stability:     stability,
		RunTests:      mode == calyxmodel.ModeTests || mode == calyxmodel.ModeApplyTests,
		AutonomyMode:  mode,
		AgentID:       agent.ID,
		SchemaVersion: "v1",
	}
	telemetry.ScoreRun(&record)
	record.Hint = telemetry.HintPolicy(record.Stability, record.Velocity, mode)
	if err := calyxschema.Builtin.Validate("run_record", record); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	_ = artifact.AppendCSV(lay.agentMetricsCSV, calyxmodel.CSVHeaders, record.CSVRow())
	_ = artifact.AppendJSONL(lay.granularTESLog, record, false)
}
