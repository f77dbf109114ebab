package batch

import (
	"time"

	"github.com/google/uuid"
)

// Batch is one tracked analysis request for a ticker. It groups all agent
// work done on its behalf; the batch id is the sole join key across agent
// results, financial artifacts and the master insight.
type Batch struct {
	ID     uuid.UUID `db:"id"`
	Ticker string    `db:"ticker"`
	Status Status    `db:"status"`

	// ErrorLog accumulates failure context line by line; it is never overwritten
	ErrorLog *string `db:"error_log"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	// CompletedAt is set exactly when the batch reaches a terminal status
	CompletedAt *time.Time `db:"completed_at"`
}

// Status defines the batch lifecycle status
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Valid checks if the status is a known lifecycle state
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// String returns string representation
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if no further transition is permitted
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether the lifecycle permits moving to next.
// PENDING→PROCESSING→{COMPLETED,FAILED}; FAILED is additionally reachable
// straight from PENDING so partial failures can finalize a batch that never
// started aggregating.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case StatusProcessing:
		return s == StatusPending || s == StatusProcessing
	case StatusCompleted:
		return s == StatusProcessing
	case StatusFailed:
		return true // any non-terminal state may fail
	}
	return false
}
