package main

import (
	"errors"
	"path/filepath"

	"calyx/internal/calyxconfig"
)

var errMissingConfigFlag = errors.New("--config is required")

// layout resolves the fixed sub-paths under a CALYX_ROOT.
type layout struct {
	root           string
	outgoingDir    string
	proposalsDir   string
	reviewsDir     string
	leasesDir      string
	queriesDir     string
	responsesDir   string
	policiesDir    string
	logsDir        string
	reportsDir     string
	memoryDir      string
	agentMetricsCSV string
	granularTESLog string
	enhancedLog    string
	warningsLog    string
	snapshotsLog   string
	topProcsLog    string
	experienceDB   string
	decisionLog    string
	deploymentLog  string
}

func newLayout(cfg calyxconfig.Config) layout {
	root := cfg.Root
	if root == "" {
		root = "."
	}
	outgoing := filepath.Join(root, "outgoing")
	logs := filepath.Join(root, "logs")
	return layout{
		root:            root,
		outgoingDir:     outgoing,
		proposalsDir:    filepath.Join(outgoing, "proposals"),
		reviewsDir:      filepath.Join(outgoing, "reviews"),
		leasesDir:       filepath.Join(outgoing, "leases"),
		queriesDir:      filepath.Join(outgoing, "queries"),
		responsesDir:    filepath.Join(outgoing, "responses"),
		policiesDir:     filepath.Join(outgoing, "policies"),
		logsDir:         logs,
		reportsDir:      filepath.Join(root, "reports"),
		memoryDir:       filepath.Join(root, "memory"),
		agentMetricsCSV: filepath.Join(logs, "agent_metrics.csv"),
		granularTESLog:  filepath.Join(logs, "granular_tes.jsonl"),
		enhancedLog:     filepath.Join(logs, "enhanced_metrics.jsonl"),
		warningsLog:     filepath.Join(logs, "early_warnings.jsonl"),
		snapshotsLog:    filepath.Join(logs, "system_snapshots.jsonl"),
		topProcsLog:     filepath.Join(logs, "top_processes.jsonl"),
		experienceDB:    filepath.Join(root, "memory", "experience.sqlite"),
		decisionLog:     filepath.Join(logs, "policy_decisions.jsonl"),
		deploymentLog:   filepath.Join(logs, "deployment_events.jsonl"),
	}
}

// loadConfig loads --config (required by every subcommand) and applies env
// overrides (CALYX_ROOT / CALYX_LOAD_MODE / CALYX_POLICY_VERSION).
func loadConfig(path string) (calyxconfig.Config, error) {
	if path == "" {
		return calyxconfig.Config{}, errMissingConfigFlag
	}
	return calyxconfig.Load(path)
}
