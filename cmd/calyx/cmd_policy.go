package main

import (
	"fmt"
	"os"
	"strings"

	"calyx/internal/policy"
)

func cmdPolicy(args []string) int {
	var configPath string
	var show bool
	var sets []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				return exitBadUsage
			}
			configPath = args[i]
		case "--show":
			show = true
		case "--set":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--set requires a value in the form KEY=VALUE")
				return exitBadUsage
			}
			sets = append(sets, args[i])
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

	gate := policy.NewGate(lay.decisionLog)
	rules := toAllowRules(cfg.AllowRules)

	for _, kv := range sets {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			fmt.Fprintf(os.Stderr, "--set value %q must be KEY=VALUE\n", kv)
			return exitBadUsage
		}
		rules = append(rules, policy.AllowRule{RequestType: parts[0], Pattern: parts[1]})
	}
	// Configure always installs a new policy_version, whether or not --set
	// was given: every Configure call bumps the version.
	installed := gate.Configure(rules)

	if show {
		fmt.Printf("policy_version=%d\n", installed.Version)
		for _, r := range installed.AllowRules {
			fmt.Printf("  %s: %s\n", r.RequestType, r.Pattern)
		}
		return exitOK
	}

	fmt.Printf("policy_version=%d\n", installed.Version)
	return exitOK
}
