// Package atomicfile provides single-writer atomic file replacement: write
// to a temp file in the same directory, then rename over the target. This
// is the only sanctioned way any Station Calyx component mutates a file
// that readers may observe concurrently (heartbeats, leases, policy files).
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// Write atomically replaces path with data. The temp file is created in the
// same directory as path so the final rename is same-filesystem and
// therefore atomic on POSIX systems.
func Write(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("atomicfile: create temp in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	// Best-effort cleanup if we bail before the rename.
	succeeded := false
	defer func() {
		if !succeeded {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("atomicfile: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("atomicfile: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("atomicfile: close temp: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("atomicfile: chmod temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("atomicfile: rename %s -> %s: %w", tmpName, path, err)
	}
	succeeded = true
	return nil
}

// AppendLine opens path for append (creating it if absent) and writes line
// followed by a newline. Used for JSONL/CSV append-only logs where the
// writer never rewrites existing bytes.
func AppendLine(path string, line []byte, durable bool) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("atomicfile: open append %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("atomicfile: append write: %w", err)
	}
	if len(line) == 0 || line[len(line)-1] != '\n' {
		if _, err := f.Write([]byte("\n")); err != nil {
			return fmt.Errorf("atomicfile: append newline: %w", err)
		}
	}
	if durable {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("atomicfile: fsync: %w", err)
		}
	}
	return nil
}

// SizeHint reports the current size of path and whether it exceeds
// maxBytes. A return of (0, false, err) with err == nil indicates a
// not-yet-existing file — never an error in this context, since artifact
// rotation hints are advisory.
func SizeHint(path string, maxBytes int64) (size int64, exceeded bool, err error) {
	fi, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return 0, false, nil
		}
		return 0, false, statErr
	}
	return fi.Size(), maxBytes > 0 && fi.Size() > maxBytes, nil
}
