package main

import (
	"fmt"
	"os"
	"strconv"

	"calyx/internal/calyxmodel"
	"calyx/internal/querybus"
)

func cmdQuery(args []string) int {
	var configPath string
	var ask, respond, list bool
	var from, to, question, answer, queryID string
	priority := string(calyxmodel.PriorityMedium)
	timeoutS := 300

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				return exitBadUsage
			}
			configPath = args[i]
		case "--ask":
			ask = true
		case "--respond":
			respond = true
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--respond requires a query id")
				return exitBadUsage
			}
			queryID = args[i]
		case "--list":
			list = true
		case "--from":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--from requires a value")
				return exitBadUsage
			}
			from = args[i]
		case "--to":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--to requires an agent id or capability tag")
				return exitBadUsage
			}
			to = args[i]
		case "--question":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--question requires a value")
				return exitBadUsage
			}
			question = args[i]
		case "--answer":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--answer requires a value")
				return exitBadUsage
			}
			answer = args[i]
		case "--priority":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--priority requires low, medium, high, or urgent")
				return exitBadUsage
			}
			priority = args[i]
		case "--timeout-s":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--timeout-s requires a value")
				return exitBadUsage
			}
			n, err := strconv.Atoi(args[i])
			if err != nil {
				fmt.Fprintln(os.Stderr, "--timeout-s must be an integer")
				return exitBadUsage
			}
			timeoutS = n
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

	bus, err := querybus.NewPersistent(lay.queriesDir, lay.responsesDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInternalInvariant
	}
	// Each configured agent counts as a registered, directly-addressable
	// peer; its heartbeat id doubles as a capability tag.
	for _, a := range cfg.Agents {
		caps := []string{}
		if a.HeartbeatID != "" && a.HeartbeatID != a.ID {
			caps = append(caps, a.HeartbeatID)
		}
		bus.RegisterCapability(a.ID, caps)
	}

	switch {
	case ask:
		if from == "" || to == "" || question == "" {
			fmt.Fprintln(os.Stderr, "--ask requires --from, --to, and --question")
			return exitBadUsage
		}
		id, err := bus.CreateQuery(from, to, question, calyxmodel.QueryPriority(priority), timeoutS)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitDomainFailure
		}
		fmt.Printf("query_id=%s\n", id)
		return exitOK

	case respond:
		if from == "" || answer == "" {
			fmt.Fprintln(os.Stderr, "--respond requires --from and --answer")
			return exitBadUsage
		}
		if err := bus.RespondToQuery(queryID, from, answer); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitDomainFailure
		}
		fmt.Printf("query_id=%s answered_by=%s\n", queryID, from)
		return exitOK

	case list:
		for _, q := range bus.Queries() {
			fmt.Printf("%s %s %s->%s %q\n", q.ID, q.Status, q.From, q.To, q.Question)
		}
		return exitOK

	default:
		fmt.Fprintln(os.Stderr, "one of --ask, --respond, or --list is required")
		return exitBadUsage
	}
}
