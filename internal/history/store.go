// Package history keeps a record of finished load runs in PostgreSQL.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/FairForge/sensorbench/internal/loadtest"
)

// Run is one stored load run.
type Run struct {
	ID             int64
	Name           string
	StartedAt      time.Time
	EndedAt        time.Time
	TotalRequests  int64
	FailureCount   int64
	ViolationCount int64
	RequestsPerSec float64
	P95Latency     time.Duration
	Violations     map[string]int64
}

// Store writes and reads run history.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL at dsn.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Store{db: db}, nil
}

// NewStore wraps an existing connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateTables creates the history table if it does not exist.
func (s *Store) CreateTables(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS load_runs (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ NOT NULL,
		total_requests BIGINT NOT NULL,
		failure_count BIGINT NOT NULL,
		violation_count BIGINT NOT NULL,
		requests_per_sec DOUBLE PRECISION NOT NULL,
		p95_latency_ms BIGINT NOT NULL,
		violations JSONB NOT NULL DEFAULT '{}'
	)`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// RecordRun stores a finished run and returns its id.
func (s *Store) RecordRun(ctx context.Context, summary *loadtest.Summary) (int64, error) {
	violations := summary.Violations
	if violations == nil {
		violations = map[string]int64{}
	}
	encoded, err := json.Marshal(violations)
	if err != nil {
		return 0, fmt.Errorf("encode violations: %w", err)
	}

	query := `INSERT INTO load_runs
		(name, started_at, ended_at, total_requests, failure_count, violation_count,
		 requests_per_sec, p95_latency_ms, violations)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	var id int64
	err = s.db.QueryRowContext(ctx, query,
		summary.TestName,
		summary.StartTime,
		summary.EndTime,
		summary.TotalRequests,
		summary.FailureCount,
		summary.ViolationCount,
		summary.RequestsPerSec,
		summary.P95Latency.Milliseconds(),
		encoded,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// ListRuns returns the most recent runs named name, newest first.
func (s *Store) ListRuns(ctx context.Context, name string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, name, started_at, ended_at, total_requests, failure_count,
		violation_count, requests_per_sec, p95_latency_ms, violations
		FROM load_runs
		WHERE name = $1
		ORDER BY started_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, name, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			p95     int64
			encoded []byte
		)
		err := rows.Scan(&r.ID, &r.Name, &r.StartedAt, &r.EndedAt, &r.TotalRequests,
			&r.FailureCount, &r.ViolationCount, &r.RequestsPerSec, &p95, &encoded)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.P95Latency = time.Duration(p95) * time.Millisecond
		if err := json.Unmarshal(encoded, &r.Violations); err != nil {
			return nil, fmt.Errorf("decode violations of run %d: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
