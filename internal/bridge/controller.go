package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"calyx/internal/artifact"
	"calyx/internal/calyxmodel"
	"calyx/internal/ids"
	"calyx/internal/lease"
)

// Controller runs fixed-cadence pulse assessments and persists their
// output. It is report-first: on RED it requests a lease from the Lease
// Manager before any corrective action would be considered, and never
// takes that action itself within this package: the bridge is
// report-first and never bypasses the policy gate or lease manager.
type Controller struct {
	ReportsDir   string // markdown reports
	PulseLog     string // structured records appended to the Experience Store intake
	LeaseManager *lease.Manager
	RequestedBy  string // actor name used when requesting a corrective-action lease
}

// Outcome summarizes one pulse assessment.
type Outcome struct {
	Event           calyxmodel.BridgePulseEvent
	ReportPath      string
	PendingChanges  string // path written on YELLOW
	AlertPath       string // path written on RED
	RequestedLease  string // lease_id requested on RED, if any
}

// RunPulse assesses in, writes the report and structured record, and on
// YELLOW/RED writes the corresponding advisory artifact.
func (c *Controller) RunPulse(in Inputs, mode calyxmodel.AutonomyMode, summary string) (Outcome, error) {
	pulseID := ids.NewPrefixed("pulse")
	event := BuildEvent(pulseID, in, mode, summary)

	out := Outcome{Event: event}

	if c.ReportsDir != "" {
		if err := os.MkdirAll(c.ReportsDir, 0o755); err != nil {
			return out, fmt.Errorf("bridge: mkdir reports dir: %w", err)
		}
		reportPath := filepath.Join(c.ReportsDir, pulseID+".md")
		if err := os.WriteFile(reportPath, []byte(Report(event)), 0o644); err != nil {
			return out, fmt.Errorf("bridge: write report: %w", err)
		}
		out.ReportPath = reportPath
	}

	if c.PulseLog != "" {
		if err := artifact.AppendJSONL(c.PulseLog, event, false); err != nil {
			return out, fmt.Errorf("bridge: append pulse log: %w", err)
		}
	}

	switch event.Status {
	case calyxmodel.PulseYellow:
		if c.ReportsDir != "" {
			p := filepath.Join(c.ReportsDir, pulseID+".pending_changes.md")
			mitigations := "Mitigations suggested (not applied): reduce concurrent agent dispatch; review recent policy denials.\n"
			if err := os.WriteFile(p, []byte(mitigations), 0o644); err != nil {
				return out, fmt.Errorf("bridge: write pending_changes: %w", err)
			}
			out.PendingChanges = p
		}
	case calyxmodel.PulseRed:
		if c.ReportsDir != "" {
			p := filepath.Join(c.ReportsDir, pulseID+".alert.md")
			alert := fmt.Sprintf("RED pulse %s at %s: uptime_24h=%v policy_violations=%d\n",
				pulseID, event.Timestamp.Format(time.RFC3339), event.Uptime24h, event.PolicyViolations)
			if err := os.WriteFile(p, []byte(alert), 0o644); err != nil {
				return out, fmt.Errorf("bridge: write alert: %w", err)
			}
			out.AlertPath = p
		}
		if c.LeaseManager != nil {
			l, err := c.LeaseManager.IssueLease(pulseID, c.RequestedBy, calyxmodel.LeaseLimits{WallclockTimeoutS: 300}, time.Hour)
			if err != nil {
				return out, fmt.Errorf("bridge: request corrective-action lease: %w", err)
			}
			out.RequestedLease = l.LeaseID
		}
	}

	return out, nil
}
