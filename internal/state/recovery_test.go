package state

import (
	"os"
	"testing"
	"time"
)

// insertOrphan inserts a running run owned by the given pid.
func insertOrphan(t *testing.T, db *DB, id string, pid int) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO runs (id, status, pid, started_at) VALUES (?, 'running', ?, ?)`,
		id, pid, formatTime(time.Now()))
	if err != nil {
		t.Fatalf("insert run: %v", err)
	}
}

func TestCheckForInterrupted(t *testing.T) {
	db := setupTestDB(t)
	insertOrphan(t, db, "dead", 999991)
	insertOrphan(t, db, "alive", 999992)
	insertOrphan(t, db, "self", os.Getpid())
	if err := db.CompleteRun(&Run{ID: "done", Status: RunSucceeded}); err != nil {
		t.Fatalf("CompleteRun failed: %v", err)
	}
	if err := db.InsertTierResult(&TierResultRecord{RunID: "dead", Tier: "cheap", Model: "m", Provider: "p", Attempt: 1, Cost: 0.25}); err != nil {
		t.Fatalf("InsertTierResult failed: %v", err)
	}

	rm := NewRecoveryManager(db)
	rm.alive = func(pid int) bool { return pid == 999992 }

	runs, err := rm.CheckForInterrupted()
	if err != nil {
		t.Fatalf("CheckForInterrupted failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 interrupted run, got %+v", runs)
	}
	if runs[0].RunID != "dead" || runs[0].Attempts != 1 || runs[0].TotalCost != 0.25 {
		t.Errorf("unexpected interrupted run: %+v", runs[0])
	}
}

func TestClean_MarksInterrupted(t *testing.T) {
	db := setupTestDB(t)
	insertOrphan(t, db, "dead", 999991)

	rm := NewRecoveryManager(db)
	rm.alive = func(int) bool { return false }

	n, err := rm.Clean()
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	if n != 1 {
		t.Errorf("cleaned %d runs, want 1", n)
	}

	r, err := db.GetRun("dead")
	if err != nil || r == nil {
		t.Fatalf("GetRun = %v, %v", r, err)
	}
	if r.Status != RunInterrupted {
		t.Errorf("Status = %q, want interrupted", r.Status)
	}
	if r.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}

	// Second pass finds nothing.
	if n, _ := rm.Clean(); n != 0 {
		t.Errorf("second Clean updated %d runs, want 0", n)
	}
}

func TestIsProcessAlive(t *testing.T) {
	if !isProcessAlive(os.Getpid()) {
		t.Error("expected current process to be alive")
	}
	if isProcessAlive(0) || isProcessAlive(-1) {
		t.Error("expected non-positive pids to be dead")
	}
}
