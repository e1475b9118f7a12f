// Package triage implements the three-phase A->B->C pipeline:
// Proposer/Validator, Reviewer, Stability. Phase B's review.signature is
// a SHA-256 over the concatenated phase-A artifact bytes a reviewer
// actually inspects, so re-running phase B on an unchanged run_dir
// reproduces the same signature.
package triage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"calyx/internal/artifact"
	"calyx/internal/calyxerr"
	"calyx/internal/calyxmodel"
)

// Runner invokes the configured agent runner for Phase A: given an
// intent's goal, it produces a plan+diff in a fresh run_dir and returns
// the path to that directory.
type Runner interface {
	Propose(intent calyxmodel.Intent, runDir string) error
}

// Reviewer inspects a run_dir's artifacts and returns a verdict. A
// reviewer that panics or returns an error is treated as VerdictFail with
// reason "reviewer_error" — absence of a verdict is never implicit PASS.
type Reviewer interface {
	Name() string
	Review(intent calyxmodel.Intent, runDir string) (calyxmodel.Verdict, error)
}

// TestRunner executes Phase C's project test suite, returning whether it
// passed and any captured output.
type TestRunner interface {
	RunTests(sourceRoots []string) (passed bool, output string, err error)
}

// Compiler runs Phase C's bytecode-compile pass over the declared source
// roots. A compile failure is critical: the intent is rejected regardless
// of reviewer verdicts.
type Compiler interface {
	Compile(sourceRoots []string) (ok bool, output string, err error)
}

// Config controls per-pipeline behavior.
type Config struct {
	StrictMode         bool // changed_files must be a subset of intent.ChangeSet
	OrchestratorVersion string
	RunPytest          bool
	SourceRoots        []string
}

// Pipeline runs the A->B->C pipeline and emits deployment events to
// deploymentLog (the append-only deployment log).
type Pipeline struct {
	cfg           Config
	runner        Runner
	reviewers     []Reviewer
	compiler      Compiler
	tests         TestRunner
	deploymentLog string
	runDirRoot    string
}

// New builds a Pipeline. compiler and tests may be nil, in which case the
// corresponding phase-C step is skipped. deploymentLog and runDirRoot are
// paths under the artifact store.
func New(cfg Config, runner Runner, reviewers []Reviewer, compiler Compiler, tests TestRunner, deploymentLog, runDirRoot string) *Pipeline {
	return &Pipeline{cfg: cfg, runner: runner, reviewers: reviewers, compiler: compiler, tests: tests, deploymentLog: deploymentLog, runDirRoot: runDirRoot}
}

// phaseAArtifacts is what Phase B expects Phase A to have produced.
type phaseAArtifacts struct {
	PlanJSON      []byte
	AuditJSON     []byte
	ChangePatch   []byte
	MetadataJSON  []byte
	ChangedFiles  []string
}

// Run executes the full pipeline for intent, returning its terminal
// status. It never leaves the intent in an ambiguous state: every branch
// ends in rejected or approved_pending_human (or an error before any
// artifacts were produced).
func (p *Pipeline) Run(intent calyxmodel.Intent) (calyxmodel.IntentStatus, error) {
	intent.Status = calyxmodel.IntentUnderReview

	// Content-addressable run_dir, keyed by intent id + goal text, so a
	// replay of the same intent lands in the same inspectable directory.
	runDir := filepath.Join(p.runDirRoot, artifact.RunDirName("agent_run_"+intent.IntentID, []byte(intent.Goal)))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return intent.Status, fmt.Errorf("triage: mkdir run_dir: %w", err)
	}

	if err := p.runner.Propose(intent, runDir); err != nil {
		return p.transition(intent, calyxmodel.IntentRejected, fmt.Sprintf("phase_a_error: %v", err))
	}

	art, err := loadPhaseAArtifacts(runDir)
	if err != nil {
		return p.transition(intent, calyxmodel.IntentRejected, fmt.Sprintf("phase_b_missing_artifacts: %v", err))
	}

	if p.cfg.StrictMode {
		if !subsetOf(art.ChangedFiles, intent.ChangeSet) {
			return p.transition(intent, calyxmodel.IntentRejected, "phase_b_changed_files_outside_change_set")
		}
	}

	verdicts := p.runReviewers(intent, runDir)
	sig := reviewSignature(p.cfg.OrchestratorVersion, art)
	if err := writeReviewJSON(runDir, intent, verdicts, sig); err != nil {
		return intent.Status, fmt.Errorf("triage: write review.json: %w", err)
	}

	for _, v := range verdicts {
		if v.Verdict == calyxmodel.VerdictFail {
			return p.transition(intent, calyxmodel.IntentRejected, fmt.Sprintf("reviewer_fail:%s", v.ReviewerID))
		}
	}

	phaseCOK, phaseCOutput, phaseCErr := p.runPhaseC()
	if phaseCErr != nil || !phaseCOK {
		reason := "phase_c_failed"
		if phaseCErr != nil {
			reason = fmt.Sprintf("phase_c_error: %v", phaseCErr)
		}
		_ = os.WriteFile(filepath.Join(runDir, "phase_c_output.txt"), []byte(phaseCOutput), 0o644)
		return p.transition(intent, calyxmodel.IntentRejected, reason)
	}

	return p.transition(intent, calyxmodel.IntentApprovedPendingHuman, "all_reviewers_pass_and_phase_c_succeeded")
}

func (p *Pipeline) runPhaseC() (bool, string, error) {
	if p.compiler != nil {
		ok, output, err := p.compiler.Compile(p.cfg.SourceRoots)
		if err != nil || !ok {
			return ok, output, err
		}
	}
	if p.tests == nil || !p.cfg.RunPytest {
		return true, "", nil
	}
	return p.tests.RunTests(p.cfg.SourceRoots)
}

func (p *Pipeline) runReviewers(intent calyxmodel.Intent, runDir string) []calyxmodel.Verdict {
	verdicts := make([]calyxmodel.Verdict, 0, len(p.reviewers))
	for _, r := range p.reviewers {
		v, err := safeReview(r, intent, runDir)
		if err != nil {
			failure := &calyxerr.ReviewerFailure{Reviewer: r.Name(), Err: err}
			v = calyxmodel.Verdict{
				IntentID:   intent.IntentID,
				ReviewerID: r.Name(),
				Verdict:    calyxmodel.VerdictFail,
				Findings:   []string{"reviewer_error"},
				Details:    map[string]any{"error": failure.Error()},
			}
		}
		verdicts = append(verdicts, v)
	}
	return verdicts
}

func safeReview(r Reviewer, intent calyxmodel.Intent, runDir string) (v calyxmodel.Verdict, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("reviewer panic: %v", rec)
		}
	}()
	return r.Review(intent, runDir)
}

func (p *Pipeline) transition(intent calyxmodel.Intent, to calyxmodel.IntentStatus, reason string) (calyxmodel.IntentStatus, error) {
	from := intent.Status
	event := calyxmodel.DeploymentEvent{
		IntentID:  intent.IntentID,
		From:      from,
		To:        to,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
	if p.deploymentLog != "" {
		if err := artifact.AppendJSONL(p.deploymentLog, event, false); err != nil {
			return to, fmt.Errorf("triage: append deployment event: %w", err)
		}
	}
	return to, nil
}

func subsetOf(changed, declared []string) bool {
	allowed := make(map[string]bool, len(declared))
	for _, f := range declared {
		allowed[f] = true
	}
	for _, f := range changed {
		if !allowed[f] {
			return false
		}
	}
	return true
}

func loadPhaseAArtifacts(runDir string) (phaseAArtifacts, error) {
	plan, err := os.ReadFile(filepath.Join(runDir, "plan.json"))
	if err != nil {
		return phaseAArtifacts{}, fmt.Errorf("plan.json: %w", err)
	}
	audit, err := os.ReadFile(filepath.Join(runDir, "audit.json"))
	if err != nil {
		return phaseAArtifacts{}, fmt.Errorf("audit.json: %w", err)
	}
	patch, _ := os.ReadFile(filepath.Join(runDir, "change.patch"))
	meta, _ := os.ReadFile(filepath.Join(runDir, "metadata.json"))

	var changedFiles []string
	if len(meta) > 0 {
		var m struct {
			ChangedFiles []string `json:"changed_files"`
		}
		if err := json.Unmarshal(meta, &m); err == nil {
			changedFiles = m.ChangedFiles
		}
	}

	return phaseAArtifacts{
		PlanJSON:     plan,
		AuditJSON:    audit,
		ChangePatch:  patch,
		MetadataJSON: meta,
		ChangedFiles: changedFiles,
	}, nil
}

func reviewSignature(orchestratorVersion string, art phaseAArtifacts) string {
	h := sha256.New()
	h.Write([]byte(orchestratorVersion))
	h.Write(art.PlanJSON)
	h.Write(art.AuditJSON)
	h.Write(art.ChangePatch)
	return hex.EncodeToString(h.Sum(nil))
}

func writeReviewJSON(runDir string, intent calyxmodel.Intent, verdicts []calyxmodel.Verdict, signature string) error {
	doc := struct {
		IntentID  string              `json:"intent_id"`
		Verdicts  []calyxmodel.Verdict `json:"verdicts"`
		Signature string              `json:"signature"`
		Timestamp time.Time           `json:"timestamp"`
	}{
		IntentID:  intent.IntentID,
		Verdicts:  verdicts,
		Signature: signature,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(runDir, "review.json"), data, 0o644)
}
