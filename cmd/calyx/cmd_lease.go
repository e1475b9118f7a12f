package main

import (
	"fmt"
	"os"
	"time"

	"calyx/internal/calyxmodel"
	"calyx/internal/lease"
)

func cmdLease(args []string) int {
	var configPath string
	var issue bool
	var cosign bool
	var verify bool
	var intentID string
	var actor string
	var role string
	var cosignerID string
	var sig string
	var leaseID string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				return exitBadUsage
			}
			configPath = args[i]
		case "--issue":
			issue = true
		case "--cosign":
			cosign = true
		case "--verify":
			verify = true
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--verify requires a lease id")
				return exitBadUsage
			}
			leaseID = args[i]
		case "--intent":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--intent requires a value")
				return exitBadUsage
			}
			intentID = args[i]
		case "--actor":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--actor requires a value")
				return exitBadUsage
			}
			actor = args[i]
		case "--role":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--role requires human or agent")
				return exitBadUsage
			}
			role = args[i]
		case "--id":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--id requires a value")
				return exitBadUsage
			}
			cosignerID = args[i]
		case "--sig":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--sig requires a value")
				return exitBadUsage
			}
			sig = args[i]
		case "--lease":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--lease requires a lease id")
				return exitBadUsage
			}
			leaseID = args[i]
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
	if err := os.MkdirAll(lay.leasesDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInternalInvariant
	}

	mgr, err := lease.New(lay.leasesDir, []byte(leaseSecret()))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInternalInvariant
	}

	switch {
	case issue:
		if intentID == "" || actor == "" {
			fmt.Fprintln(os.Stderr, "--issue requires --intent and --actor")
			return exitBadUsage
		}
		l, err := mgr.IssueLease(intentID, actor, calyxmodel.LeaseLimits{WallclockTimeoutS: 300}, time.Hour)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitDomainFailure
		}
		fmt.Printf("lease_id=%s\n", l.LeaseID)
		return exitOK

	case cosign:
		if leaseID == "" || role == "" || cosignerID == "" || sig == "" {
			fmt.Fprintln(os.Stderr, "--cosign requires --lease, --role, --id, and --sig")
			return exitBadUsage
		}
		r := calyxmodel.CosignerRole(role)
		if r != calyxmodel.RoleHuman && r != calyxmodel.RoleAgent {
			fmt.Fprintln(os.Stderr, "--role must be human or agent")
			return exitBadUsage
		}
		if err := mgr.AddCosignature(leaseID, r, cosignerID, sig); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitDomainFailure
		}
		fmt.Printf("lease_id=%s cosigned_by=%s/%s\n", leaseID, role, cosignerID)
		return exitOK

	case verify:
		result, err := mgr.VerifyLease(leaseID)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitDomainFailure
		}
		fmt.Printf("usable=%v reason=%s\n", result.Usable, result.Reason)
		if !result.Usable {
			return exitDomainFailure
		}
		return exitOK

	default:
		fmt.Fprintln(os.Stderr, "one of --issue, --cosign, or --verify is required")
		return exitBadUsage
	}
}
