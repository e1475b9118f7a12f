package heartbeat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"calyx/internal/atomicfile"
	"calyx/internal/calyxerr"
	"calyx/internal/calyxschema"
)

// ErrNotFound is returned by Read when no heartbeat file exists for a name.
var ErrNotFound = errors.New("heartbeat: not found")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Fabric is a directory of heartbeat lock files rooted at Dir (typically
// "<CALYX_ROOT>/outgoing").
type Fabric struct {
	Dir string
}

// NewFabric returns a Fabric rooted at dir. The directory is created if
// absent.
func NewFabric(dir string) (*Fabric, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("heartbeat: mkdir %s: %w", dir, err)
	}
	return &Fabric{Dir: dir}, nil
}

func (f *Fabric) path(name string) string {
	return filepath.Join(f.Dir, name+".lock")
}

// Write atomically publishes r under its own name. Only the component named
// by r.ID may ever call this for that name — the Fabric does not enforce
// that itself (there is no shared memory to enforce it with); it is a
// process-topology invariant.
func (f *Fabric) Write(r Record) error {
	r.ValidationWarning = ""
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("heartbeat: marshal %s: %w", r.ID, err)
	}
	if err := calyxschema.Builtin.Validate("heartbeat", data); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	var writeErr error
	for attempt := 0; attempt < 3; attempt++ {
		if writeErr = atomicfile.Write(f.path(r.ID), data, 0o644); writeErr == nil {
			return nil
		}
		time.Sleep(time.Duration(50+50*attempt) * time.Millisecond)
	}
	return calyxerr.NewTransientIOError("heartbeat write "+r.ID, writeErr)
}

// Read returns the latest heartbeat for name. Readers never lock; a
// truncated read during a concurrent rename is retried a few times with a
// short sleep before giving up and returning a degraded record carrying
// ValidationWarning: parsing stays resilient to truncation during a
// concurrent rename.
func (f *Fabric) Read(name string) (Record, error) {
	path := f.path(name)
	const attempts = 4
	var lastErr error
	for i := 0; i < attempts; i++ {
		raw, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return Record{}, ErrNotFound
			}
			lastErr = err
			time.Sleep(10 * time.Millisecond)
			continue
		}
		raw = bytes.TrimPrefix(raw, utf8BOM)
		var r Record
		if err := json.Unmarshal(raw, &r); err != nil {
			lastErr = err
			time.Sleep(10 * time.Millisecond)
			continue
		}
		return r, nil
	}
	return Record{
		ID:                name,
		ValidationWarning: fmt.Sprintf("parse failed after retries: %v", lastErr),
	}, nil
}

// Freshness reads name's heartbeat and classifies it relative to ttl.
func (f *Fabric) Freshness(name string, ttl time.Duration) Freshness {
	r, err := f.Read(name)
	if err != nil {
		return Missing
	}
	if r.ValidationWarning != "" {
		return Stale
	}
	return r.Classify(time.Now(), ttl)
}

// Aggregate reads every registered name's heartbeat and returns a map of
// name -> Record, skipping names with no file yet. One sweep over every
// component's lock file rather than one name at a time.
func (f *Fabric) Aggregate(names []string) map[string]Record {
	out := make(map[string]Record, len(names))
	for _, n := range names {
		r, err := f.Read(n)
		if err != nil {
			continue
		}
		out[n] = r
	}
	return out
}
