// Package experience implements the experience store: an embedded
// relational store (event/context/outcome/confidence/db_metadata tables)
// recording one row per bridge pulse, with recall and retention-based
// compaction. Uses modernc.org/sqlite, the pure-Go cgo-free driver,
// through database/sql.
package experience

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"calyx/internal/calyxmodel"
)

// Store is the Experience Store. Writes are serialized by a single
// in-process mutex; reads
// may proceed concurrently through database/sql's own pooling.
type Store struct {
	db     *sql.DB
	writeMu sync.Mutex
}

// Open opens (creating if absent) a sqlite-backed Store at path and
// ensures its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("experience: open %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS event (
			event_id TEXT PRIMARY KEY,
			pulse_id TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			summary TEXT NOT NULL,
			autonomy_mode TEXT,
			active_agents INTEGER,
			status TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS context (
			event_id TEXT PRIMARY KEY REFERENCES event(event_id),
			cpu_pct REAL,
			ram_pct REAL,
			gpu_pct REAL,
			capacity_score REAL,
			gates_state TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS outcome (
			event_id TEXT PRIMARY KEY REFERENCES event(event_id),
			tes_score REAL,
			stability REAL,
			velocity REAL,
			footprint REAL,
			uptime_24h REAL,
			policy_violations INTEGER,
			manual_interventions INTEGER,
			outcome TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS confidence (
			event_id TEXT PRIMARY KEY REFERENCES event(event_id),
			confidence_delta REAL
		)`,
		`CREATE TABLE IF NOT EXISTS db_metadata (
			key TEXT PRIMARY KEY,
			value TEXT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("experience: migrate: %w", err)
		}
	}
	return nil
}

// RecordBridgePulse transactionally inserts event+context+outcome(+confidence)
// rows for one pulse, returning the generated event_id.
func (s *Store) RecordBridgePulse(ctx context.Context, ev calyxmodel.BridgePulseEvent) (string, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("experience: begin tx: %w", err)
	}
	defer tx.Rollback()

	eventID := ev.PulseID
	gatesJSON, _ := json.Marshal(ev.GatesState)

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO event (event_id, pulse_id, timestamp, summary, autonomy_mode, active_agents, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		eventID, ev.PulseID, ev.Timestamp.Format(time.RFC3339Nano), ev.Summary, string(ev.AutonomyMode), ev.ActiveAgents, string(ev.Status),
	); err != nil {
		return "", fmt.Errorf("experience: insert event: %w", err)
	}

	var gpu any
	if ev.GPUPct != nil {
		gpu = *ev.GPUPct
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO context (event_id, cpu_pct, ram_pct, gpu_pct, capacity_score, gates_state)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		eventID, ev.CPUPct, ev.RAMPct, gpu, ev.CapacityScore, string(gatesJSON),
	); err != nil {
		return "", fmt.Errorf("experience: insert context: %w", err)
	}

	var tes, stability, velocity, footprint, uptime any
	if ev.TESScore != nil {
		tes = *ev.TESScore
	}
	if ev.Stability != nil {
		stability = *ev.Stability
	}
	if ev.Velocity != nil {
		velocity = *ev.Velocity
	}
	if ev.Footprint != nil {
		footprint = *ev.Footprint
	}
	if ev.Uptime24h != nil {
		uptime = *ev.Uptime24h
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO outcome (event_id, tes_score, stability, velocity, footprint, uptime_24h, policy_violations, manual_interventions, outcome)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		eventID, tes, stability, velocity, footprint, uptime, ev.PolicyViolations, ev.ManualInterventions, string(ev.Outcome),
	); err != nil {
		return "", fmt.Errorf("experience: insert outcome: %w", err)
	}

	if ev.ConfidenceDelta != nil {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO confidence (event_id, confidence_delta) VALUES (?, ?)`,
			eventID, *ev.ConfidenceDelta,
		); err != nil {
			return "", fmt.Errorf("experience: insert confidence: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("experience: commit: %w", err)
	}
	return eventID, nil
}

// RecentEvents returns events from the last `hours` hours, most recent
// first, capped at limit.
func (s *Store) RecentEvents(ctx context.Context, hours int, limit int) ([]RecalledEvent, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour).Format(time.RFC3339Nano)
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, summary, timestamp, status FROM event WHERE timestamp >= ? ORDER BY timestamp DESC LIMIT ?`,
		cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("experience: recent events query: %w", err)
	}
	defer rows.Close()
	return scanRecalled(rows)
}

func scanRecalled(rows *sql.Rows) ([]RecalledEvent, error) {
	var out []RecalledEvent
	for rows.Next() {
		var e RecalledEvent
		if err := rows.Scan(&e.EventID, &e.Summary, &e.Timestamp, &e.Status); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Checksum computes a stable digest of the event table's primary keys and
// timestamps, persisted in db_metadata by Compact and surfaced on
// corruption.
func (s *Store) checksum(ctx context.Context) (string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT event_id, timestamp FROM event ORDER BY event_id`)
	if err != nil {
		return "", err
	}
	defer rows.Close()
	h := sha256.New()
	for rows.Next() {
		var id, ts string
		if err := rows.Scan(&id, &ts); err != nil {
			return "", err
		}
		fmt.Fprintf(h, "%s:%s\n", id, ts)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
