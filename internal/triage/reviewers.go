package triage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"calyx/internal/calyxmodel"
)

// secretPatterns are coarse heuristics for committed credentials, enough
// to catch the obvious cases (AWS keys, private key blocks, generic
// "api_key = ..." assignments) without trying to be a full secret scanner.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`-----BEGIN (RSA |EC )?PRIVATE KEY-----`),
	regexp.MustCompile(`(?i)(api[_-]?key|secret|password)\s*[:=]\s*['"][^'"\s]{8,}['"]`),
}

// SecretScanner flags change.patch content that looks like a committed
// credential.
type SecretScanner struct{}

func (SecretScanner) Name() string { return "secret_scanner" }

func (SecretScanner) Review(intent calyxmodel.Intent, runDir string) (calyxmodel.Verdict, error) {
	patch, err := os.ReadFile(filepath.Join(runDir, "change.patch"))
	if err != nil {
		// No patch to scan is not itself a finding; Phase B already
		// requires plan.json/audit.json, not change.patch.
		return calyxmodel.Verdict{
			IntentID: intent.IntentID, ReviewerID: "secret_scanner", Verdict: calyxmodel.VerdictPass,
		}, nil
	}

	var findings []string
	for _, re := range secretPatterns {
		if loc := re.FindIndex(patch); loc != nil {
			findings = append(findings, "possible_secret:"+re.String())
		}
	}

	v := calyxmodel.VerdictPass
	if len(findings) > 0 {
		v = calyxmodel.VerdictFail
	}
	return calyxmodel.Verdict{
		IntentID:   intent.IntentID,
		ReviewerID: "secret_scanner",
		Verdict:    v,
		Findings:   findings,
	}, nil
}

// brokenAssertionPatterns match added diff lines that neuter a test:
// hard-coded assert False/True, or unconditional skips.
var brokenAssertionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\+\s*assert\s+(False|True)\b`),
	regexp.MustCompile(`^\+\s*@?pytest\.mark\.skip\b`),
	regexp.MustCompile(`^\+\s*pytest\.skip\(`),
	regexp.MustCompile(`^\+\s*t\.Skip\(`),
}

// TestIntegrityChecker flags changes that weaken test coverage: a diff
// that introduces a hard-coded assertion or unconditional skip into a
// test file, or a change set touching only test files with no source
// change to motivate it.
type TestIntegrityChecker struct{}

func (TestIntegrityChecker) Name() string { return "test_integrity" }

func (TestIntegrityChecker) Review(intent calyxmodel.Intent, runDir string) (calyxmodel.Verdict, error) {
	var findings []string

	if patch, err := os.ReadFile(filepath.Join(runDir, "change.patch")); err == nil {
		findings = append(findings, scanPatchForBrokenTests(patch)...)
	}

	if meta, err := os.ReadFile(filepath.Join(runDir, "metadata.json")); err == nil {
		changed := extractChangedFiles(meta)
		var testFiles, nonTestFiles []string
		for _, f := range changed {
			if isTestFile(f) {
				testFiles = append(testFiles, f)
			} else {
				nonTestFiles = append(nonTestFiles, f)
			}
		}
		if len(testFiles) > 0 && len(nonTestFiles) == 0 {
			findings = append(findings, "test_only_change_no_source_touched")
		}
	}

	v := calyxmodel.VerdictPass
	if len(findings) > 0 {
		v = calyxmodel.VerdictFail
	}
	return calyxmodel.Verdict{
		IntentID:   intent.IntentID,
		ReviewerID: "test_integrity",
		Verdict:    v,
		Findings:   findings,
	}, nil
}

// scanPatchForBrokenTests walks a unified diff, tracking the current
// target file from "+++ b/..." headers, and flags added lines matching a
// broken-assertion pattern inside test files.
func scanPatchForBrokenTests(patch []byte) []string {
	var findings []string
	current := ""
	inTestFile := false
	for _, line := range strings.Split(string(patch), "\n") {
		if strings.HasPrefix(line, "+++ ") {
			current = strings.TrimPrefix(line, "+++ ")
			current = strings.TrimPrefix(current, "b/")
			inTestFile = isTestFile(current)
			continue
		}
		if !inTestFile || !strings.HasPrefix(line, "+") || strings.HasPrefix(line, "+++") {
			continue
		}
		for _, re := range brokenAssertionPatterns {
			if re.MatchString(line) {
				findings = append(findings, "broken_test_assertion:"+current)
				break
			}
		}
	}
	return findings
}

func isTestFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, "_test.go") || strings.Contains(base, "_test") || strings.HasPrefix(base, "test_")
}

func extractChangedFiles(meta []byte) []string {
	var m struct {
		ChangedFiles []string `json:"changed_files"`
	}
	if err := json.Unmarshal(meta, &m); err != nil {
		return nil
	}
	return m.ChangedFiles
}
