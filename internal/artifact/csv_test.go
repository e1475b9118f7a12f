package artifact

import (
	"path/filepath"
	"testing"
)

func TestAppendCSVCreatesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.csv")
	headers := []string{"iso_ts", "tes", "status"}

	if err := AppendCSV(path, headers, []string{"2026-07-31T00:00:00Z", "87.5", "done"}); err != nil {
		t.Fatalf("AppendCSV: %v", err)
	}
	if err := AppendCSV(path, headers, []string{"2026-07-31T00:01:00Z", "91.0", "done"}); err != nil {
		t.Fatalf("AppendCSV: %v", err)
	}

	rows, err := ReadTailCSV(path, 10)
	if err != nil {
		t.Fatalf("ReadTailCSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(rows), rows)
	}
	if rows[0]["tes"] != "87.5" || rows[1]["tes"] != "91.0" {
		t.Fatalf("unexpected row contents: %+v", rows)
	}
}

func TestReadTailCSVLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.csv")
	headers := []string{"i"}
	for i := 0; i < 5; i++ {
		_ = AppendCSV(path, headers, []string{string(rune('0' + i))})
	}
	rows, err := ReadTailCSV(path, 2)
	if err != nil {
		t.Fatalf("ReadTailCSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["i"] != "3" || rows[1]["i"] != "4" {
		t.Fatalf("unexpected tail: %+v", rows)
	}
}
