// Package ids mints the lexicographically-sortable identifiers used
// throughout Station Calyx (run/intent/lease/query/pulse ids).
package ids

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a new ULID string. Safe for concurrent use.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewPrefixed returns a new ULID string prefixed with prefix + "-", e.g.
// NewPrefixed("run") -> "run-01J....".
func NewPrefixed(prefix string) string {
	return prefix + "-" + New()
}
