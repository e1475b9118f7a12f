// Package policy implements the deny-by-default execution policy gate
// for the station: every decision is recorded, and an empty allow-list still
// produces (and logs) a DENIED decision rather than silently dropping the
// request.
package policy

import (
	"fmt"
	"sync"
	"time"

	"calyx/internal/artifact"
	"calyx/internal/calyxmodel"
	"calyx/internal/calyxschema"
)

// AllowRule is one allow-list entry: request_type must match exactly (or
// via "*"), and summary must match the glob Pattern.
type AllowRule struct {
	RequestType string `json:"request_type" yaml:"request_type"`
	Pattern     string `json:"pattern" yaml:"pattern"`
}

// Policy is the live, immutable-once-installed configuration. Configure
// installs a new Policy atomically and bumps Version.
type Policy struct {
	Version    int         `json:"policy_version" yaml:"-"`
	AllowRules []AllowRule `json:"allow_rules" yaml:"allow_rules"`
}

// Gate evaluates requests against the live Policy and logs every decision.
type Gate struct {
	mu            sync.RWMutex
	policy        Policy
	decisionLog   string // path to the append-only decision log
	totalDecisions int
	deniedCount    int
}

// NewGate creates a Gate starting from a deny-all policy (no allow rules),
// logging decisions to decisionLogPath.
func NewGate(decisionLogPath string) *Gate {
	return &Gate{
		policy:      Policy{Version: 1, AllowRules: nil},
		decisionLog: decisionLogPath,
	}
}

// Configure atomically replaces the live policy. Every replacement
// increments PolicyVersion regardless of whether the rule set actually
// changed, so operators can always tell a reload happened.
func (g *Gate) Configure(rules []AllowRule) Policy {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.policy = Policy{Version: g.policy.Version + 1, AllowRules: rules}
	return g.policy
}

// Snapshot returns the current live policy.
func (g *Gate) Snapshot() Policy {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.policy
}

// Evaluate decides ALLOWED/DENIED for requestType+summary against the live
// allow-list, appends the decision to the decision log, and returns it.
// An empty allow-list still produces and records a DENIED decision.
func (g *Gate) Evaluate(requestType, summary string, context map[string]any) (calyxmodel.PolicyDecision, error) {
	g.mu.RLock()
	rules := g.policy.AllowRules
	version := g.policy.Version
	g.mu.RUnlock()

	decision := calyxmodel.PolicyDecision{
		Result:         calyxmodel.Denied,
		Reason:         "no allow-list rule matched (deny-by-default)",
		Timestamp:      time.Now().UTC(),
		RequestType:    requestType,
		RequestSummary: summary,
		PolicyVersion:  version,
	}

	for _, rule := range rules {
		if rule.RequestType != "*" && rule.RequestType != requestType {
			continue
		}
		matched, err := matchGlob(rule.Pattern, summary)
		if err != nil {
			return decision, fmt.Errorf("policy: bad pattern %q: %w", rule.Pattern, err)
		}
		if matched {
			decision.Result = calyxmodel.Allowed
			decision.Reason = fmt.Sprintf("matched allow rule request_type=%q pattern=%q", rule.RequestType, rule.Pattern)
			break
		}
	}

	g.mu.Lock()
	g.totalDecisions++
	if decision.Result == calyxmodel.Denied {
		g.deniedCount++
	}
	g.mu.Unlock()

	if err := calyxschema.Builtin.Validate("policy_decision", decision); err != nil {
		return decision, fmt.Errorf("policy: %w", err)
	}

	if g.decisionLog != "" {
		if err := artifact.AppendJSONL(g.decisionLog, decision, false); err != nil {
			return decision, fmt.Errorf("policy: append decision log: %w", err)
		}
	}
	return decision, nil
}

// Stats are the cumulative counters exposed by the gate.
type Stats struct {
	TotalDecisions int `json:"total_decisions"`
	DeniedCount    int `json:"denied_count"`
	PolicyVersion  int `json:"policy_version"`
}

// Stats returns the current decision counters.
func (g *Gate) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return Stats{
		TotalDecisions: g.totalDecisions,
		DeniedCount:    g.deniedCount,
		PolicyVersion:  g.policy.Version,
	}
}
