package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"calyx/internal/heartbeat"
	"calyx/internal/supervisor"
)

func cmdSupervisor(args []string) int {
	var configPath string
	var intervalSec int = 30
	var maxRestartWindowCount string
	var backoffSec int
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
		case "--max-restart":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--max-restart requires a value in the form WINDOW/COUNT")
				return exitBadUsage
			}
			maxRestartWindowCount = args[i]
		case "--backoff":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--backoff requires a value")
				return exitBadUsage
			}
			n, err := strconv.Atoi(args[i])
			if err != nil {
				fmt.Fprintln(os.Stderr, "--backoff must be an integer")
				return exitBadUsage
			}
			backoffSec = n
		case "--once":
			once = true
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
	if err := os.MkdirAll(lay.outgoingDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInternalInvariant
	}

	fabric, err := heartbeat.NewFabric(lay.outgoingDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInternalInvariant
	}

	windowSec, maxRestarts, err := parseWindowCount(maxRestartWindowCount)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitBadUsage
	}

	services := make([]supervisor.ServiceSpec, 0, len(cfg.Services))
	for _, svc := range cfg.Services {
		spec := supervisor.ServiceSpec{
			Name:      svc.Name,
			Signature: svc.Signature,
			Command:   svc.Command,
			Singleton: svc.Singleton,
		}
		if svc.MaxRestarts != nil {
			spec.MaxRestarts = *svc.MaxRestarts
		} else if maxRestarts > 0 {
			spec.MaxRestarts = maxRestarts
		}
		if svc.WindowSec != nil {
			spec.WindowSec = time.Duration(*svc.WindowSec) * time.Second
		} else if windowSec > 0 {
			spec.WindowSec = time.Duration(windowSec) * time.Second
		}
		if svc.BackoffSec != nil {
			spec.BackoffSec = time.Duration(*svc.BackoffSec) * time.Second
		} else if backoffSec > 0 {
			spec.BackoffSec = time.Duration(backoffSec) * time.Second
		}
		services = append(services, spec)
	}

	sv := supervisor.New("supervisor", services, fabric)

	if once {
		result := sv.RunOnce(time.Now())
		if len(result.StartErrors) > 0 {
			return exitDomainFailure
		}
		return exitOK
	}

	ticker := time.NewTicker(time.Duration(intervalSec) * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		sv.RunOnce(time.Now())
	}
	return exitOK
}

// parseWindowCount parses "WINDOW/COUNT" (seconds/restarts) for --max-restart.
func parseWindowCount(s string) (windowSec, count int, err error) {
	if s == "" {
		return 0, 0, nil
	}
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("--max-restart must be in the form WINDOW/COUNT, got %q", s)
	}
	windowSec, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("--max-restart window must be an integer: %w", err)
	}
	count, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("--max-restart count must be an integer: %w", err)
	}
	return windowSec, count, nil
}
