package artifact

import (
	"encoding/csv"
	"fmt"
	"os"
)

// AppendCSV appends row to path, creating the file with headers if it
// doesn't yet exist. Existing rows are never rewritten. This is used for
// the TES run-record log (logs/agent_metrics.csv).
func AppendCSV(path string, headers []string, row []string) error {
	_, err := os.Stat(path)
	needsHeader := os.IsNotExist(err)
	if err != nil && !needsHeader {
		return fmt.Errorf("artifact: stat %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("artifact: open csv %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if needsHeader {
		if err := w.Write(headers); err != nil {
			return fmt.Errorf("artifact: write csv header: %w", err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("artifact: write csv row: %w", err)
	}
	w.Flush()
	return w.Error()
}

// ReadTailCSV returns the last n data rows of path (header excluded),
// oldest first, as a slice of field-name -> value maps.
func ReadTailCSV(path string, n int) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("artifact: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("artifact: read csv %s: %w", path, err)
	}
	if len(all) < 2 {
		return nil, nil
	}
	header := all[0]
	rows := all[1:]
	if n <= 0 || n > len(rows) {
		n = len(rows)
	}
	rows = rows[len(rows)-n:]

	out := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		rec := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(row) {
				rec[h] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out, nil
}
