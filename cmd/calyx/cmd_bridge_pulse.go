package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"calyx/internal/artifact"
	"calyx/internal/bridge"
	"calyx/internal/calyxmodel"
	"calyx/internal/experience"
	"calyx/internal/heartbeat"
	"calyx/internal/lease"
	"calyx/internal/metrics"
	"calyx/internal/probe"
)

func cmdBridgePulse(args []string) int {
	var configPath string
	var reportID string
	var outputDir string
	var once bool
	var serveAddr string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				return exitBadUsage
			}
			configPath = args[i]
		case "--report-id":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--report-id requires a value")
				return exitBadUsage
			}
			reportID = args[i]
		case "--output":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--output requires a value")
				return exitBadUsage
			}
			outputDir = args[i]
		case "--once":
			once = true
		case "--serve":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--serve requires an address, e.g. :9101")
				return exitBadUsage
			}
			serveAddr = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			return exitBadUsage
		}
	}
	_ = reportID // pulse ids are minted internally (ids.NewPrefixed); this flag names the requested report for operator correlation only.

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitBadUsage
	}
	lay := newLayout(cfg)
	reportsDir := lay.reportsDir
	if outputDir != "" {
		reportsDir = outputDir
	}
	if err := os.MkdirAll(reportsDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInternalInvariant
	}
	if err := os.MkdirAll(lay.leasesDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInternalInvariant
	}

	leaseMgr, err := lease.New(lay.leasesDir, []byte(leaseSecret()))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInternalInvariant
	}

	fabric, err := heartbeat.NewFabric(lay.outgoingDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInternalInvariant
	}
	agentNames := make([]string, 0, len(cfg.Agents))
	for _, a := range cfg.Agents {
		if a.HeartbeatID != "" {
			agentNames = append(agentNames, a.HeartbeatID)
		}
	}

	controller := &bridge.Controller{
		ReportsDir:   reportsDir,
		PulseLog:     lay.enhancedLog,
		LeaseManager: leaseMgr,
		RequestedBy:  "bridge-pulse",
	}

	if err := os.MkdirAll(lay.memoryDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInternalInvariant
	}
	store, err := experience.Open(lay.experienceDB)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInternalInvariant
	}
	defer store.Close()

	// Retention compaction runs once per process start; a failure here is
	// diagnostic (the store refuses to compact when it looks corrupt) and
	// must not stop pulse assessment.
	if err := store.Compact(context.Background(), experience.DefaultRetentionDays); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	// The probe ring carries the rolling sample window across restarts.
	ringCache := filepath.Join(lay.memoryDir, "probe_cache.msgpack")
	ring, err := probe.LoadCache(ringCache, 288)
	if err != nil {
		ring = probe.NewRing(288)
	}

	runOnce := func() (bridge.Outcome, error) {
		snap, err := probe.Sample(context.Background(), "/")
		if err != nil {
			return bridge.Outcome{}, err
		}
		_ = artifact.AppendJSONL(lay.snapshotsLog, snap, false)

		meanTES := 0.0
		if rows, err := artifact.ReadTailJSONL(lay.granularTESLog, 20); err == nil && len(rows) > 0 {
			var sum float64
			for _, row := range rows {
				if v, ok := row["tes_v3"].(float64); ok {
					sum += v
				}
			}
			meanTES = sum / float64(len(rows))
		}

		uptime := 1.0
		active := 0
		if len(agentNames) > 0 {
			live := fabric.Aggregate(agentNames)
			fresh := 0
			for _, name := range agentNames {
				rec, ok := live[name]
				if !ok {
					continue
				}
				if rec.Classify(time.Now(), heartbeat.DefaultStalenessTTL) == heartbeat.Fresh {
					fresh++
					if rec.Status == heartbeat.StatusRunning {
						active++
					}
				}
			}
			uptime = float64(fresh) / float64(len(agentNames))
		}

		ring.Push(snap)
		_ = ring.SaveCache(ringCache)

		in := bridge.Inputs{
			CPUPct:       snap.CPUPct,
			RAMPct:       snap.RAMPct,
			MeanTES:      meanTES,
			Uptime24h:    uptime,
			ActiveAgents: active,
		}
		summary := fmt.Sprintf("automated pulse assessment (%d capacity samples in window)", len(ring.Values()))
		out, err := controller.RunPulse(in, calyxmodel.ModeSafe, summary)
		if err == nil {
			if _, rerr := store.RecordBridgePulse(context.Background(), out.Event); rerr != nil {
				fmt.Fprintln(os.Stderr, rerr)
			}
			metrics.CapacityScore.Set(out.Event.CapacityScore)
			metrics.SetPulseStatus(string(out.Event.Status))
		}
		return out, err
	}

	if serveAddr != "" {
		go func() {
			if err := metrics.Serve(serveAddr); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		}()
	}

	if once {
		out, err := runOnce()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitDomainFailure
		}
		fmt.Printf("status=%s report=%s\n", out.Event.Status, out.ReportPath)
		if out.Event.Status == calyxmodel.PulseRed {
			return exitDomainFailure
		}
		return exitOK
	}

	ticker := time.NewTicker(bridge.MicroInterval)
	defer ticker.Stop()
	for range ticker.C {
		if _, err := runOnce(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	return exitOK
}

// leaseSecret resolves the HMAC secret for lease signing. A production
// deployment supplies this via CALYX_LEASE_SECRET.
func leaseSecret() string {
	if s := os.Getenv("CALYX_LEASE_SECRET"); s != "" {
		return s
	}
	return "dev-only-insecure-lease-secret"
}
