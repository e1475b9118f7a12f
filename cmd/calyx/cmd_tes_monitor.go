package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"calyx/internal/artifact"
	"calyx/internal/metrics"
	"calyx/internal/telemetry"
)

func cmdTESMonitor(args []string) int {
	var configPath string
	intervalSec := 60
	tailN := 50
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
		case "--tail":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--tail requires a value")
				return exitBadUsage
			}
			n, err := strconv.Atoi(args[i])
			if err != nil {
				fmt.Fprintln(os.Stderr, "--tail must be an integer")
				return exitBadUsage
			}
			tailN = n
		case "--once":
			once = true
		case "--serve":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--serve requires an address, e.g. :9102")
				return exitBadUsage
			}
			serveAddr = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			return exitBadUsage
		}
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitBadUsage
	}
	lay := newLayout(cfg)
	if err := os.MkdirAll(lay.logsDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInternalInvariant
	}

	if serveAddr != "" {
		go func() {
			if err := metrics.Serve(serveAddr); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		}()
	}

	emitter := telemetry.NewEmitter()
	baseline := telemetry.NewBaseline(0)

	runOnce := func() error {
		rows, err := artifact.ReadTailJSONL(lay.granularTESLog, tailN)
		if err != nil {
			return err
		}
		tesHistory := make([]float64, 0, len(rows))
		stabilities := make([]float64, 0, len(rows))
		for _, row := range rows {
			if v, ok := row["tes_v3"].(float64); ok {
				tesHistory = append(tesHistory, v)
				metrics.TESScore.Set(v)
				_, severity := baseline.Check(v)
				if severity == telemetry.SeverityHigh {
					fmt.Fprintf(os.Stderr, "WARNING: tes anomaly severity=high value=%.2f\n", v)
				}
				baseline.Observe(v)
			}
			if v, ok := row["stability"].(float64); ok {
				stabilities = append(stabilities, v)
			}
		}

		warnings := emitter.Assess(tesHistory, 0, stabilities, false)
		for _, w := range warnings {
			_ = artifact.AppendJSONL(lay.warningsLog, w, false)
			fmt.Printf("warning kind=%s detail=%q\n", w.Kind, w.Detail)
		}
		return nil
	}

	if once {
		if err := runOnce(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitDomainFailure
		}
		return exitOK
	}

	ticker := time.NewTicker(time.Duration(intervalSec) * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if err := runOnce(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	return exitOK
}
