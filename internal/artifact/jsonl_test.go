package artifact

import (
	"path/filepath"
	"testing"
)

func TestAppendThenTailJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	rec := map[string]any{"a": 1.0, "b": "x"}
	if err := AppendJSONL(path, rec, false); err != nil {
		t.Fatalf("AppendJSONL: %v", err)
	}
	got, err := ReadTailJSONL(path, 1)
	if err != nil {
		t.Fatalf("ReadTailJSONL: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0]["a"] != 1.0 || got[0]["b"] != "x" {
		t.Fatalf("round trip mismatch: %+v", got[0])
	}
}

func TestReadTailJSONLOrderAndLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	for i := 0; i < 5; i++ {
		if err := AppendJSONL(path, map[string]any{"i": float64(i)}, false); err != nil {
			t.Fatalf("AppendJSONL: %v", err)
		}
	}
	got, err := ReadTailJSONL(path, 3)
	if err != nil {
		t.Fatalf("ReadTailJSONL: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	want := []float64{2, 3, 4}
	for idx, w := range want {
		if got[idx]["i"] != w {
			t.Fatalf("record %d: got %v want %v", idx, got[idx]["i"], w)
		}
	}
}

func TestReadTailJSONLMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.jsonl")
	got, err := ReadTailJSONL(path, 5)
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil result, got %+v", got)
	}
}

func TestRotationHint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.jsonl")
	for i := 0; i < 10; i++ {
		_ = AppendJSONL(path, map[string]any{"i": i}, false)
	}
	size, exceeded, err := RotationHint(path, 1)
	if err != nil {
		t.Fatalf("RotationHint: %v", err)
	}
	if !exceeded {
		t.Fatalf("expected exceeded=true for tiny maxBytes, size=%d", size)
	}
}
