// Package querybus implements the cross-agent query bus: agents register
// capabilities, create queries targeted at a specific agent or a
// capability tag, and respond. Expired queries are marked, never deleted.
// The broadcaster fans out over per-subscriber buffered channels and
// drops slow clients instead of blocking the sender.
package querybus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"calyx/internal/atomicfile"
	"calyx/internal/calyxmodel"
	"calyx/internal/ids"
)

// Bus holds the live query/capability registry and fans out new queries
// to subscribed agents. With queue directories configured, every query
// and response is also persisted as a JSON file, so a bus restart (or an
// unrelated reader) sees the same state the in-memory projection holds.
type Bus struct {
	mu           sync.Mutex
	capabilities map[string]calyxmodel.CapabilityEntry
	byCapability map[string]map[string]bool // capability -> set of agent_id
	queries      map[string]calyxmodel.Query
	responses    map[string][]calyxmodel.QueryResponse
	subscribers  map[string]map[uint64]chan calyxmodel.Query // agent_id -> subscriber set
	nextSubID    uint64
	queriesDir   string
	responsesDir string
}

// New creates an empty, in-memory Bus.
func New() *Bus {
	return &Bus{
		capabilities: map[string]calyxmodel.CapabilityEntry{},
		byCapability: map[string]map[string]bool{},
		queries:      map[string]calyxmodel.Query{},
		responses:    map[string][]calyxmodel.QueryResponse{},
		subscribers:  map[string]map[uint64]chan calyxmodel.Query{},
	}
}

// NewPersistent creates a Bus whose queue entries live under queriesDir
// and responsesDir, reloading any existing entries so restarts resume
// where the previous process left off.
func NewPersistent(queriesDir, responsesDir string) (*Bus, error) {
	b := New()
	b.queriesDir = queriesDir
	b.responsesDir = responsesDir
	for _, dir := range []string{queriesDir, responsesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("querybus: mkdir %s: %w", dir, err)
		}
	}
	if err := b.reload(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bus) reload() error {
	entries, err := os.ReadDir(b.queriesDir)
	if err != nil {
		return fmt.Errorf("querybus: read %s: %w", b.queriesDir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(b.queriesDir, e.Name()))
		if err != nil {
			continue
		}
		var q calyxmodel.Query
		if err := json.Unmarshal(raw, &q); err != nil || q.ID == "" {
			continue
		}
		b.queries[q.ID] = q
	}
	rentries, err := os.ReadDir(b.responsesDir)
	if err != nil {
		return fmt.Errorf("querybus: read %s: %w", b.responsesDir, err)
	}
	for _, e := range rentries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(b.responsesDir, e.Name()))
		if err != nil {
			continue
		}
		var rs []calyxmodel.QueryResponse
		if err := json.Unmarshal(raw, &rs); err != nil || len(rs) == 0 {
			continue
		}
		b.responses[rs[0].QueryID] = rs
	}
	return nil
}

// persistQuery must be called with b.mu held (or before the bus is
// shared). A persistence failure is surfaced but does not roll back the
// in-memory record: the memory projection is the source of truth while
// the process lives.
func (b *Bus) persistQuery(q calyxmodel.Query) error {
	if b.queriesDir == "" {
		return nil
	}
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("querybus: marshal query %s: %w", q.ID, err)
	}
	return atomicfile.Write(filepath.Join(b.queriesDir, q.ID+".json"), data, 0o644)
}

func (b *Bus) persistResponses(queryID string) error {
	if b.responsesDir == "" {
		return nil
	}
	data, err := json.Marshal(b.responses[queryID])
	if err != nil {
		return fmt.Errorf("querybus: marshal responses %s: %w", queryID, err)
	}
	return atomicfile.Write(filepath.Join(b.responsesDir, queryID+".json"), data, 0o644)
}

// RegisterCapability records that agentID can answer queries tagged with
// capabilities, refreshing LastSeen.
func (b *Bus) RegisterCapability(agentID string, capabilities []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	old, existed := b.capabilities[agentID]
	if existed {
		for _, c := range old.Capabilities {
			if set := b.byCapability[c]; set != nil {
				delete(set, agentID)
			}
		}
	}
	b.capabilities[agentID] = calyxmodel.CapabilityEntry{
		AgentID: agentID, Capabilities: capabilities, LastSeen: time.Now().UTC(),
	}
	for _, c := range capabilities {
		if b.byCapability[c] == nil {
			b.byCapability[c] = map[string]bool{}
		}
		b.byCapability[c][agentID] = true
	}
}

// CreateQuery files a new query. If to names a registered agent id, it is
// a direct ask; otherwise to is treated as a capability tag and broadcast
// to every agent registered with that capability.
func (b *Bus) CreateQuery(from, to, question string, priority calyxmodel.QueryPriority, timeoutS int) (string, error) {
	q := calyxmodel.Query{
		ID:       ids.NewPrefixed("query"),
		From:     from,
		To:       to,
		Question: question,
		Priority: priority,
		Created:  time.Now().UTC(),
		Status:   calyxmodel.QueryPending,
		TimeoutS: timeoutS,
	}

	b.mu.Lock()
	b.queries[q.ID] = q
	persistErr := b.persistQuery(q)
	targets := b.resolveTargets(to)
	b.mu.Unlock()

	if persistErr != nil {
		return q.ID, persistErr
	}

	if len(targets) == 0 {
		return q.ID, fmt.Errorf("querybus: no registered agent or capability matches %q", to)
	}
	for _, agentID := range targets {
		b.deliver(agentID, q)
	}
	return q.ID, nil
}

// resolveTargets must be called with b.mu held.
func (b *Bus) resolveTargets(to string) []string {
	if _, ok := b.capabilities[to]; ok {
		return []string{to}
	}
	if set, ok := b.byCapability[to]; ok {
		targets := make([]string, 0, len(set))
		for id := range set {
			targets = append(targets, id)
		}
		return targets
	}
	return nil
}

func (b *Bus) deliver(agentID string, q calyxmodel.Query) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers[agentID] {
		select {
		case ch <- q:
		default:
			// Slow subscriber: drop rather than block the sender. The
			// query itself is still durable in b.queries for polling
			// readers.
		}
	}
}

// RespondToQuery records an answer and marks the query answered, unless
// it has already expired.
func (b *Bus) RespondToQuery(queryID, from, answer string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queries[queryID]
	if !ok {
		return fmt.Errorf("querybus: unknown query %s", queryID)
	}
	if q.Expired(time.Now().UTC()) {
		q.Status = calyxmodel.QueryExpired
		b.queries[queryID] = q
		_ = b.persistQuery(q)
		return fmt.Errorf("querybus: query %s already expired", queryID)
	}

	b.responses[queryID] = append(b.responses[queryID], calyxmodel.QueryResponse{
		QueryID: queryID, From: from, Answer: answer,
	})
	q.Status = calyxmodel.QueryAnswered
	b.queries[queryID] = q
	if err := b.persistQuery(q); err != nil {
		return err
	}
	return b.persistResponses(queryID)
}

// MarkExpiredIfPast transitions q to expired if it is past its deadline;
// any reader may call this, and a query is never auto-deleted.
func (b *Bus) MarkExpiredIfPast(queryID string, now time.Time) (calyxmodel.Query, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queries[queryID]
	if !ok {
		return calyxmodel.Query{}, fmt.Errorf("querybus: unknown query %s", queryID)
	}
	if q.Status == calyxmodel.QueryPending && q.Expired(now) {
		q.Status = calyxmodel.QueryExpired
		b.queries[queryID] = q
		_ = b.persistQuery(q)
	}
	return q, nil
}

// Get returns a query by id.
func (b *Bus) Get(queryID string) (calyxmodel.Query, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queries[queryID]
	return q, ok
}

// Queries returns every known query, pending first, then by creation
// time. Used by operator tooling to inspect the queue.
func (b *Bus) Queries() []calyxmodel.Query {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]calyxmodel.Query, 0, len(b.queries))
	for _, q := range b.queries {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool {
		if (out[i].Status == calyxmodel.QueryPending) != (out[j].Status == calyxmodel.QueryPending) {
			return out[i].Status == calyxmodel.QueryPending
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out
}

// Responses returns the responses recorded for a query.
func (b *Bus) Responses(queryID string) []calyxmodel.QueryResponse {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]calyxmodel.QueryResponse(nil), b.responses[queryID]...)
}

// Filter is what FilterFor returns: the channels and senders an agent
// should read, and the senders it ignores.
type Filter struct {
	AgentID        string
	AllowedSenders map[string]bool
	Ignored        map[string]bool
}

// FilterFor returns the senders agentID currently accepts queries from
// (every other registered agent, minus any it has not chosen to ignore —
// ignore lists are reserved for future configuration and empty here).
func (b *Bus) FilterFor(agentID string) Filter {
	b.mu.Lock()
	defer b.mu.Unlock()
	allowed := map[string]bool{}
	for id := range b.capabilities {
		if id != agentID {
			allowed[id] = true
		}
	}
	return Filter{AgentID: agentID, AllowedSenders: allowed, Ignored: map[string]bool{}}
}

// Subscribe returns a channel of queries newly targeted at agentID and an
// unsubscribe function. The channel is buffered; a slow reader misses
// events rather than blocking the bus.
func (b *Bus) Subscribe(agentID string) (<-chan calyxmodel.Query, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan calyxmodel.Query, 64)
	id := b.nextSubID
	b.nextSubID++
	if b.subscribers[agentID] == nil {
		b.subscribers[agentID] = map[uint64]chan calyxmodel.Query{}
	}
	b.subscribers[agentID][id] = ch

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if set := b.subscribers[agentID]; set != nil {
			if _, ok := set[id]; ok {
				delete(set, id)
				close(ch)
			}
		}
	}
	return ch, unsub
}
