package artifact

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// ContentHash returns the hex-encoded BLAKE3 digest of path's contents,
// so run_dir names and artifact-store dedup keys are cheap to compute
// even for large diffs.
func ContentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("artifact: open for hash %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("artifact: hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ContentHashBytes returns the hex-encoded BLAKE3 digest of b, used for
// small in-memory artifacts (e.g. a rendered diff) that aren't yet on disk.
func ContentHashBytes(b []byte) string {
	h := blake3.New()
	_, _ = h.Write(b)
	return hex.EncodeToString(h.Sum(nil))
}

// RunDirName derives a content-addressable directory name for a run,
// combining a human-readable timestamp prefix with a short hash of seed
// (typically the intent_id or goal text), so two runs of the same intent
// don't collide and the directory name stays inspectable.
func RunDirName(prefix string, seed []byte) string {
	sum := ContentHashBytes(seed)
	short := sum
	if len(short) > 12 {
		short = short[:12]
	}
	return fmt.Sprintf("%s_%s", prefix, short)
}
