package state

import "io"

// RunStore handles run and tier-attempt persistence.
type RunStore interface {
	EnsureRun(r *Run) error
	CompleteRun(r *Run) error
	GetRun(id string) (*Run, error)
	ListRuns(limit int) ([]Run, error)
	InsertTierResult(r *TierResultRecord) error
	ListTierResults(runID string) ([]TierResultRecord, error)
}

// EventStore handles raw telemetry event persistence.
type EventStore interface {
	InsertEvent(e *EventRecord) error
	ListEvents(runID string) ([]EventRecord, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store defines the interface for tierup persistence so telemetry sinks
// and commands can work without depending on the SQLite implementation.
type Store interface {
	io.Closer
	Migrator
	RunStore
	EventStore
	Stats() (*Stats, error)
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store      = (*DB)(nil)
	_ Migrator   = (*DB)(nil)
	_ RunStore   = (*DB)(nil)
	_ EventStore = (*DB)(nil)
)
