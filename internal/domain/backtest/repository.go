package backtest

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// Repository defines the interface for backtest record data access
type Repository interface {
	// Create inserts the record with all quantitative fields in one statement
	Create(ctx context.Context, r *Record) error

	GetByBatch(ctx context.Context, batchID uuid.UUID) (*Record, error)

	// SetAnalysis patches the qualitative payload onto an existing record;
	// the quantitative columns are never touched by this path.
	SetAnalysis(ctx context.Context, batchID uuid.UUID, analysis json.RawMessage) error
}
