// Package calyxmodel holds the shared on-disk entity types that more
// than one component needs to read or write. Every type here accepts
// unknown JSON keys on decode (plain struct decode already does this)
// and is validated against calyxschema where precision matters.
package calyxmodel

import "strconv"

// AutonomyMode is the level of action permitted to an agent execution.
type AutonomyMode string

const (
	ModeSafe        AutonomyMode = "safe"
	ModeTests       AutonomyMode = "tests"
	ModeApply       AutonomyMode = "apply"
	ModeApplyTests  AutonomyMode = "apply_tests"
)

// RunStatus is the terminal or in-flight status of an agent execution.
type RunStatus string

const (
	RunDone    RunStatus = "done"
	RunFail    RunStatus = "fail"
	RunTimeout RunStatus = "timeout"
	RunRunning RunStatus = "running"
)

// RunRecord is one row appended per agent execution (the "TES row").
type RunRecord struct {
	ISOTs         string       `json:"iso_ts"`
	TES           float64      `json:"tes"`
	Stability     float64      `json:"stability"`
	Velocity      float64      `json:"velocity"`
	Footprint     float64      `json:"footprint"`
	DurationS     float64      `json:"duration_s"`
	Status        RunStatus    `json:"status"`
	Applied       bool         `json:"applied"`
	ChangedFiles  int          `json:"changed_files"`
	RunTests      bool         `json:"run_tests"`
	AutonomyMode  AutonomyMode `json:"autonomy_mode"`
	ModelID       string       `json:"model_id"`
	RunDir        string       `json:"run_dir"`
	Hint          string       `json:"hint,omitempty"`
	Compliance    *float64     `json:"compliance,omitempty"`
	Ethics        *float64     `json:"ethics,omitempty"`
	Coherence     *float64     `json:"coherence,omitempty"`
	TESv3         float64      `json:"tes_v3"`
	SchemaVersion string       `json:"schema_version"`
	AgentID       string       `json:"agent_id,omitempty"`

	// Failed is true when the run completed but its declared goal was not
	// met (distinct from Status=fail, which means the process itself
	// errored). Input to the graduated stability scoring.
	Failed bool `json:"failed,omitempty"`
}

// SyntheticCollabTag marks a run produced by a simulated
// agent-collaboration loop. Synthetic runs never contribute to TES
// aggregates.
const SyntheticCollabTag = "synthetic_collab"

// IsSynthetic reports whether r was produced by a simulated collaboration
// loop and must be excluded from TES trend/anomaly aggregation.
func (r RunRecord) IsSynthetic() bool {
	return r.Hint == SyntheticCollabTag
}

// CSVHeaders is the stable column order for logs/agent_metrics.csv.
var CSVHeaders = []string{
	"iso_ts", "tes", "stability", "velocity", "footprint", "duration_s",
	"status", "applied", "changed_files", "run_tests", "autonomy_mode",
	"model_id", "run_dir", "hint", "tes_v3", "schema_version", "agent_id",
}

// CSVRow renders r in CSVHeaders column order.
func (r RunRecord) CSVRow() []string {
	return []string{
		r.ISOTs,
		strconv.FormatFloat(r.TES, 'f', -1, 64),
		strconv.FormatFloat(r.Stability, 'f', -1, 64),
		strconv.FormatFloat(r.Velocity, 'f', -1, 64),
		strconv.FormatFloat(r.Footprint, 'f', -1, 64),
		strconv.FormatFloat(r.DurationS, 'f', -1, 64),
		string(r.Status),
		strconv.FormatBool(r.Applied),
		strconv.Itoa(r.ChangedFiles),
		strconv.FormatBool(r.RunTests),
		string(r.AutonomyMode),
		r.ModelID,
		r.RunDir,
		r.Hint,
		strconv.FormatFloat(r.TESv3, 'f', -1, 64),
		r.SchemaVersion,
		r.AgentID,
	}
}
