package calyxmodel

import "time"

// PolicyResult is the outcome of evaluating a single execution request.
type PolicyResult string

const (
	Allowed PolicyResult = "ALLOWED"
	Denied  PolicyResult = "DENIED"
)

// PolicyDecision is recorded once per execution request, deny-by-default.
type PolicyDecision struct {
	Result         PolicyResult `json:"result"`
	Reason         string       `json:"reason"`
	Timestamp      time.Time    `json:"timestamp"`
	RequestType    string       `json:"request_type"`
	RequestSummary string       `json:"request_summary"`
	PolicyVersion  int          `json:"policy_version"`
}
