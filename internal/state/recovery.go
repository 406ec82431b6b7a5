package state

import (
	"fmt"
	"log"
	"os"
	"syscall"
	"time"
)

// InterruptedRun describes a run left in the running state by a process
// that is no longer alive.
type InterruptedRun struct {
	RunID     string
	PID       int
	StartedAt time.Time
	Attempts  int
	TotalCost float64
}

// RecoveryManager handles detection and cleanup of interrupted runs.
type RecoveryManager struct {
	db *DB
	// alive reports whether a process is still running. Replaced in tests.
	alive func(pid int) bool
}

// NewRecoveryManager creates a new RecoveryManager with the given database.
func NewRecoveryManager(db *DB) *RecoveryManager {
	return &RecoveryManager{db: db, alive: isProcessAlive}
}

// CheckForInterrupted lists runs still marked running whose owning process
// has exited. Tier attempts recorded so far are summed into the result.
func (rm *RecoveryManager) CheckForInterrupted() ([]InterruptedRun, error) {
	rows, err := rm.db.Query(`
		SELECT r.id, r.pid, r.started_at, COUNT(t.id), COALESCE(SUM(t.cost), 0)
		FROM runs r LEFT JOIN tier_results t ON t.run_id = r.id
		WHERE r.status = ?
		GROUP BY r.id
		ORDER BY r.started_at
	`, string(RunRunning))
	if err != nil {
		return nil, fmt.Errorf("list running runs: %w", err)
	}
	defer rows.Close()

	var interrupted []InterruptedRun
	for rows.Next() {
		var ir InterruptedRun
		var startedAt string
		if err := rows.Scan(&ir.RunID, &ir.PID, &startedAt, &ir.Attempts, &ir.TotalCost); err != nil {
			return nil, fmt.Errorf("scan running run: %w", err)
		}
		if ir.PID == os.Getpid() || rm.alive(ir.PID) {
			continue
		}
		ir.StartedAt, _ = parseTime(startedAt)
		interrupted = append(interrupted, ir)
	}
	return interrupted, rows.Err()
}

// Clean marks every interrupted run as such, carrying over the cost and
// attempts already recorded. Returns the number of runs updated.
func (rm *RecoveryManager) Clean() (int, error) {
	runs, err := rm.CheckForInterrupted()
	if err != nil {
		return 0, err
	}

	now := formatTime(time.Now())
	for _, ir := range runs {
		_, err := rm.db.Exec(`
			UPDATE runs SET status = ?, attempts = ?, total_cost = ?, completed_at = ?
			WHERE id = ? AND status = ?
		`, string(RunInterrupted), ir.Attempts, ir.TotalCost, now, ir.RunID, string(RunRunning))
		if err != nil {
			return 0, fmt.Errorf("mark run %s interrupted: %w", ir.RunID, err)
		}
		log.Printf("Marked run %s (pid %d) as interrupted", ir.RunID, ir.PID)
	}
	return len(runs), nil
}

// isProcessAlive checks if a process with the given PID is still running.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Send signal 0 to check if process exists
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
