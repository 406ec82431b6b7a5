package state

import (
	"database/sql"
	"fmt"
	"os"
	"time"
)

// RunStatus represents the lifecycle state of a recorded run.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunSucceeded   RunStatus = "succeeded"
	RunFailed      RunStatus = "failed"
	RunInterrupted RunStatus = "interrupted"
)

// Run is one progressive workflow execution.
type Run struct {
	ID              string
	UserHash        string
	Status          RunStatus
	FinalTier       string
	Attempts        int
	TotalCost       float64
	PremiumBaseline float64
	DurationMs      int64
	PID             int
	StartedAt       time.Time
	CompletedAt     *time.Time
}

// TierResultRecord is a single tier attempt belonging to a run.
type TierResultRecord struct {
	ID               int64
	RunID            string
	Tier             string
	Model            string
	Provider         string
	Attempt          int
	CQS              float64
	Cost             float64
	TokensInput      int64
	TokensOutput     int64
	DurationMs       int64
	Escalated        bool
	EscalationReason string
	CreatedAt        time.Time
}

// EventRecord is a raw telemetry event with a JSON payload.
type EventRecord struct {
	ID        string
	RunID     string
	Type      string
	Payload   string
	CreatedAt time.Time
}

// Run CRUD operations

// EnsureRun inserts r as a running run owned by the current process if no
// row with the same ID exists.
func (db *DB) EnsureRun(r *Run) error {
	userHash := r.UserHash
	if userHash == "" {
		userHash = "anonymous"
	}
	started := r.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	_, err := db.Exec(`
		INSERT OR IGNORE INTO runs (id, user_hash, status, premium_baseline, pid, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, userHash, string(RunRunning), r.PremiumBaseline, os.Getpid(), formatTime(started))
	if err != nil {
		return fmt.Errorf("ensure run: %w", err)
	}
	return nil
}

// CompleteRun writes the final state of a run, inserting it when absent.
// A zero PremiumBaseline keeps the stored one.
func (db *DB) CompleteRun(r *Run) error {
	completed := time.Now()
	if r.CompletedAt != nil {
		completed = *r.CompletedAt
	}
	started := r.StartedAt
	if started.IsZero() {
		started = completed.Add(-time.Duration(r.DurationMs) * time.Millisecond)
	}
	userHash := r.UserHash
	if userHash == "" {
		userHash = "anonymous"
	}

	_, err := db.Exec(`
		INSERT INTO runs (id, user_hash, status, final_tier, attempts, total_cost,
			premium_baseline, duration_ms, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			final_tier = excluded.final_tier,
			attempts = excluded.attempts,
			total_cost = excluded.total_cost,
			premium_baseline = CASE WHEN excluded.premium_baseline > 0
				THEN excluded.premium_baseline ELSE runs.premium_baseline END,
			duration_ms = excluded.duration_ms,
			completed_at = excluded.completed_at
	`, r.ID, userHash, string(r.Status), r.FinalTier, r.Attempts, r.TotalCost,
		r.PremiumBaseline, r.DurationMs, formatTime(started), formatTime(completed))
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

const runColumns = `id, user_hash, status, COALESCE(final_tier, ''), attempts, total_cost,
	premium_baseline, duration_ms, pid, started_at, completed_at`

func scanRun(scan func(dest ...any) error) (*Run, error) {
	var r Run
	var startedAt string
	var completedAt sql.NullString
	if err := scan(&r.ID, &r.UserHash, &r.Status, &r.FinalTier, &r.Attempts, &r.TotalCost,
		&r.PremiumBaseline, &r.DurationMs, &r.PID, &startedAt, &completedAt); err != nil {
		return nil, err
	}
	r.StartedAt, _ = parseTime(startedAt)
	r.CompletedAt = parseNullableTime(completedAt)
	return &r, nil
}

// GetRun retrieves a run by ID. Returns nil when it does not exist.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// Tier result operations

// InsertTierResult appends a tier attempt to its run.
func (db *DB) InsertTierResult(r *TierResultRecord) error {
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	var escalated int
	if r.Escalated {
		escalated = 1
	}

	res, err := db.Exec(`
		INSERT INTO tier_results (run_id, tier, model, provider, attempt, cqs, cost,
			tokens_input, tokens_output, duration_ms, escalated, escalation_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, r.Tier, r.Model, r.Provider, r.Attempt, r.CQS, r.Cost,
		r.TokensInput, r.TokensOutput, r.DurationMs, escalated, r.EscalationReason, formatTime(created))
	if err != nil {
		return fmt.Errorf("insert tier result: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		r.ID = id
	}
	return nil
}

// ListTierResults returns a run's tier attempts in insertion order.
func (db *DB) ListTierResults(runID string) ([]TierResultRecord, error) {
	rows, err := db.Query(`
		SELECT id, run_id, tier, model, provider, attempt, cqs, cost, tokens_input,
			tokens_output, duration_ms, escalated, COALESCE(escalation_reason, ''), created_at
		FROM tier_results WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list tier results: %w", err)
	}
	defer rows.Close()

	var results []TierResultRecord
	for rows.Next() {
		var r TierResultRecord
		var escalated int
		var createdAt string
		if err := rows.Scan(&r.ID, &r.RunID, &r.Tier, &r.Model, &r.Provider, &r.Attempt,
			&r.CQS, &r.Cost, &r.TokensInput, &r.TokensOutput, &r.DurationMs, &escalated,
			&r.EscalationReason, &createdAt); err != nil {
			return nil, fmt.Errorf("scan tier result: %w", err)
		}
		r.Escalated = escalated != 0
		r.CreatedAt, _ = parseTime(createdAt)
		results = append(results, r)
	}
	return results, rows.Err()
}

// Event operations

// InsertEvent stores a telemetry event.
func (db *DB) InsertEvent(e *EventRecord) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := db.Exec(`
		INSERT INTO events (id, run_id, type, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.ID, e.RunID, e.Type, e.Payload, formatTime(created))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListEvents returns a run's events in chronological order.
func (db *DB) ListEvents(runID string) ([]EventRecord, error) {
	rows, err := db.Query(`
		SELECT id, run_id, type, payload, created_at
		FROM events WHERE run_id = ? ORDER BY created_at, id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var e EventRecord
		var createdAt string
		if err := rows.Scan(&e.ID, &e.RunID, &e.Type, &e.Payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.CreatedAt, _ = parseTime(createdAt)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Stats summarizes every completed and in-flight run in the store.
type Stats struct {
	Runs        int
	Succeeded   int
	Failed      int
	Interrupted int
	TotalCost   float64
	// TotalSavings is the sum of premium baselines minus actual cost.
	TotalSavings      float64
	EscalationsByTier map[string]int
	AttemptsByTier    map[string]int
	AverageCQSByTier  map[string]float64
}

// SuccessRate returns the fraction of finished runs that succeeded.
func (s *Stats) SuccessRate() float64 {
	finished := s.Succeeded + s.Failed
	if finished == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(finished)
}

// AverageCost returns mean cost per run.
func (s *Stats) AverageCost() float64 {
	if s.Runs == 0 {
		return 0
	}
	return s.TotalCost / float64(s.Runs)
}

// Stats aggregates run and tier history.
func (db *DB) Stats() (*Stats, error) {
	s := &Stats{
		EscalationsByTier: make(map[string]int),
		AttemptsByTier:    make(map[string]int),
		AverageCQSByTier:  make(map[string]float64),
	}

	rows, err := db.Query(`
		SELECT status, COUNT(*), COALESCE(SUM(total_cost), 0), COALESCE(SUM(premium_baseline - total_cost), 0)
		FROM runs GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("query run stats: %w", err)
	}
	for rows.Next() {
		var status RunStatus
		var count int
		var cost, savings float64
		if err := rows.Scan(&status, &count, &cost, &savings); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run stats: %w", err)
		}
		s.Runs += count
		s.TotalCost += cost
		switch status {
		case RunSucceeded:
			s.Succeeded = count
			s.TotalSavings += savings
		case RunFailed:
			s.Failed = count
			s.TotalSavings += savings
		case RunInterrupted:
			s.Interrupted = count
		}
	}
	rows.Close()

	rows, err = db.Query(`
		SELECT tier, COUNT(*), COALESCE(SUM(escalated), 0), COALESCE(AVG(cqs), 0)
		FROM tier_results GROUP BY tier
	`)
	if err != nil {
		return nil, fmt.Errorf("query tier stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tier string
		var attempts, escalations int
		var avg float64
		if err := rows.Scan(&tier, &attempts, &escalations, &avg); err != nil {
			return nil, fmt.Errorf("scan tier stats: %w", err)
		}
		s.AttemptsByTier[tier] = attempts
		s.EscalationsByTier[tier] = escalations
		s.AverageCQSByTier[tier] = avg
	}
	return s, rows.Err()
}
