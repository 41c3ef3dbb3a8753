// Package audit persists routing decisions to a local SQLite database.
// This is an audit trail for cost and routing visibility, not a billing
// enforcement point; a write failure never fails the routing decision.
package audit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS routing_decisions (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    intent        TEXT NOT NULL,
    method        TEXT NOT NULL,
    engine        TEXT NOT NULL,
    skill_used    TEXT NOT NULL DEFAULT '',
    skill_created TEXT NOT NULL DEFAULT '',
    cost          REAL NOT NULL DEFAULT 0,
    input_tokens  INTEGER NOT NULL DEFAULT 0,
    output_tokens INTEGER NOT NULL DEFAULT 0,
    duration_ms   INTEGER NOT NULL DEFAULT 0,
    created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_routing_decisions_method ON routing_decisions(method);
CREATE INDEX IF NOT EXISTS idx_routing_decisions_created_at ON routing_decisions(created_at);
`

// Entry is one persisted routing decision
type Entry struct {
	ID           int64     `db:"id"`
	Intent       string    `db:"intent"`
	Method       string    `db:"method"`
	Engine       string    `db:"engine"`
	SkillUsed    string    `db:"skill_used"`
	SkillCreated string    `db:"skill_created"`
	Cost         float64   `db:"cost"`
	InputTokens  int64     `db:"input_tokens"`
	OutputTokens int64     `db:"output_tokens"`
	DurationMS   int64     `db:"duration_ms"`
	CreatedAt    time.Time `db:"created_at"`
}

// Stats aggregates the audit trail for the stats surface
type Stats struct {
	TotalRequests int64            `json:"total_requests"`
	TotalCost     float64          `json:"total_cost"`
	AvgDurationMS float64          `json:"avg_duration_ms"`
	ByMethod      map[string]int64 `json:"by_method"`
	ByIntent      map[string]int64 `json:"by_intent"`
}

// Store wraps the SQLite audit database
type Store struct {
	db *sqlx.DB
}

// Open opens or creates the audit database at path and applies the schema
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open audit database")
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping audit database")
	}

	if err := configure(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to apply audit schema")
	}

	return &Store{db: db}, nil
}

func configure(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=memory",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return errors.Wrapf(err, "failed to execute pragma: %s", pragma)
		}
	}

	db.SetMaxIdleConns(1)
	db.SetMaxOpenConns(1)

	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return errors.Wrap(err, "failed to query journal mode")
	}
	if strings.ToLower(journalMode) != "wal" {
		return errors.Errorf("WAL mode not enabled, current mode: %s", journalMode)
	}
	return nil
}

// Record appends one routing decision
func (s *Store) Record(ctx context.Context, entry Entry) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO routing_decisions
			(intent, method, engine, skill_used, skill_created, cost, input_tokens, output_tokens, duration_ms)
		VALUES
			(:intent, :method, :engine, :skill_used, :skill_created, :cost, :input_tokens, :output_tokens, :duration_ms)`,
		entry)
	return errors.Wrap(err, "failed to record routing decision")
}

// Recent returns the most recent decisions, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []Entry
	err := s.db.SelectContext(ctx, &entries,
		`SELECT * FROM routing_decisions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load recent decisions")
	}
	return entries, nil
}

// Stats aggregates the full audit trail
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByMethod: make(map[string]int64),
		ByIntent: make(map[string]int64),
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(cost), 0), COALESCE(AVG(duration_ms), 0)
		FROM routing_decisions`)
	if err := row.Scan(&stats.TotalRequests, &stats.TotalCost, &stats.AvgDurationMS); err != nil {
		return nil, errors.Wrap(err, "failed to aggregate audit totals")
	}

	type bucket struct {
		Key   string `db:"key"`
		Count int64  `db:"count"`
	}

	var methods []bucket
	if err := s.db.SelectContext(ctx, &methods,
		`SELECT method AS key, COUNT(*) AS count FROM routing_decisions GROUP BY method`); err != nil {
		return nil, errors.Wrap(err, "failed to aggregate methods")
	}
	for _, b := range methods {
		stats.ByMethod[b.Key] = b.Count
	}

	var intents []bucket
	if err := s.db.SelectContext(ctx, &intents,
		`SELECT intent AS key, COUNT(*) AS count FROM routing_decisions GROUP BY intent`); err != nil {
		return nil, errors.Wrap(err, "failed to aggregate intents")
	}
	for _, b := range intents {
		stats.ByIntent[b.Key] = b.Count
	}

	return stats, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}
