package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestContentHashMatchesBytesHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	data := []byte("diff --git a/main.go b/main.go")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	fromFile, err := ContentHash(path)
	if err != nil {
		t.Fatalf("ContentHash: %v", err)
	}
	if fromFile != ContentHashBytes(data) {
		t.Fatalf("file and bytes digests disagree")
	}
}

func TestRunDirNameStableAndPrefixed(t *testing.T) {
	a := RunDirName("agent_run_intent-1", []byte("optimize the planner"))
	b := RunDirName("agent_run_intent-1", []byte("optimize the planner"))
	if a != b {
		t.Fatalf("expected deterministic run dir name, got %q and %q", a, b)
	}
	if !strings.HasPrefix(a, "agent_run_intent-1_") {
		t.Fatalf("expected prefix to survive, got %q", a)
	}
	c := RunDirName("agent_run_intent-1", []byte("different goal"))
	if a == c {
		t.Fatalf("expected different seeds to produce different names")
	}
}
