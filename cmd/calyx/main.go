package main

import (
	"fmt"
	"os"

	"calyx/internal/version"
)

// Exit codes, uniform across every subcommand.
const (
	exitOK               = 0
	exitDomainFailure    = 1
	exitBadUsage         = 2
	exitInternalInvariant = 3
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(exitBadUsage)
	}

	switch os.Args[1] {
	case "--version", "-v", "version":
		fmt.Printf("calyx %s\n", version.Version)
		os.Exit(exitOK)
	case "supervisor":
		os.Exit(cmdSupervisor(os.Args[2:]))
	case "scheduler":
		os.Exit(cmdScheduler(os.Args[2:]))
	case "triage":
		os.Exit(cmdTriage(os.Args[2:]))
	case "bridge-pulse":
		os.Exit(cmdBridgePulse(os.Args[2:]))
	case "tes-monitor":
		os.Exit(cmdTESMonitor(os.Args[2:]))
	case "policy":
		os.Exit(cmdPolicy(os.Args[2:]))
	case "lease":
		os.Exit(cmdLease(os.Args[2:]))
	case "query":
		os.Exit(cmdQuery(os.Args[2:]))
	default:
		usage()
		os.Exit(exitBadUsage)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  calyx --version")
	fmt.Fprintln(os.Stderr, "  calyx supervisor --config FILE [--interval SECS] [--max-restart WINDOW/COUNT] [--backoff SECS] [--once]")
	fmt.Fprintln(os.Stderr, "  calyx scheduler --config FILE [--interval SECS] [--mode {safe|tests|apply|apply_tests}] [--auto-promote] [--promote-after N] [--cooldown-mins M] [--once]")
	fmt.Fprintln(os.Stderr, "  calyx triage --config FILE --goal-file PATH [--max-steps N] [--strict] [--pytest] [--pytest-args \"...\"]")
	fmt.Fprintln(os.Stderr, "  calyx bridge-pulse --config FILE [--report-id ID] [--output DIR] [--once] [--serve ADDR]")
	fmt.Fprintln(os.Stderr, "  calyx tes-monitor --config FILE [--interval SECS] [--tail N] [--once] [--serve ADDR]")
	fmt.Fprintln(os.Stderr, "  calyx policy --config FILE [--show] [--set KEY=VALUE]")
	fmt.Fprintln(os.Stderr, "  calyx lease --config FILE [--issue --intent ID --actor NAME] [--cosign --role {human|agent} --id ID --sig SIG --lease ID] [--verify ID]")
	fmt.Fprintln(os.Stderr, "  calyx query --config FILE [--ask --from ID --to ID|TAG --question \"...\"] [--respond QUERY_ID --from ID --answer \"...\"] [--list]")
}
