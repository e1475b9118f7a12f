package calyxmodel

import "time"

// RiskLevel is the declared risk level of a proposed change.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// IntentType enumerates the kinds of proposals Triage accepts.
type IntentType string

const (
	IntentCodeChange   IntentType = "code_change"
	IntentConfigChange IntentType = "config_change"
)

// IntentStatus is the status machine driven by Triage verdict routing.
type IntentStatus string

const (
	IntentUnderReview          IntentStatus = "under_review"
	IntentApprovedPendingHuman IntentStatus = "approved_pending_human"
	IntentRejected             IntentStatus = "rejected"
	IntentSuperseded           IntentStatus = "superseded"
)

// Intent is a declarative request for a change, evaluated by Triage.
type Intent struct {
	IntentID        string       `json:"intent_id"`
	ProposedBy      string       `json:"proposed_by"`
	Type            IntentType   `json:"type"`
	Goal            string       `json:"goal"`
	ChangeSet       []string     `json:"change_set"`
	RiskLevel       RiskLevel    `json:"risk_level"`
	RollbackPlan    string       `json:"rollback_plan"`
	Reviewers       []string     `json:"reviewers"`
	TestsReference  []string     `json:"tests_reference,omitempty"`
	Status          IntentStatus `json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Verdict is emitted by a Triage reviewer during Phase B.
type Verdict struct {
	IntentID  string         `json:"intent_id"`
	ReviewerID string        `json:"reviewer_id"`
	Verdict   VerdictResult  `json:"verdict"`
	Findings  []string       `json:"findings"`
	Details   map[string]any `json:"details,omitempty"`
	Signature string         `json:"signature,omitempty"`
}

// VerdictResult is PASS or FAIL.
type VerdictResult string

const (
	VerdictPass VerdictResult = "PASS"
	VerdictFail VerdictResult = "FAIL"
)

// DeploymentEvent is emitted to the Artifact Store on every intent status
// transition.
type DeploymentEvent struct {
	IntentID  string       `json:"intent_id"`
	From      IntentStatus `json:"from"`
	To        IntentStatus `json:"to"`
	Reason    string       `json:"reason"`
	Timestamp time.Time    `json:"timestamp"`
}
