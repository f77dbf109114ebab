package agentresult

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for agent result data access
type Repository interface {
	// Upsert inserts or overwrites the result keyed on (batch_id, agent_type).
	// The overwrite only applies while the existing row is non-terminal; it
	// reports whether the write landed so the caller can surface
	// ErrAlreadyFinalized on a rejected overwrite.
	Upsert(ctx context.Context, r *Result) (bool, error)

	// Overwrite unconditionally replaces the result for the key. This is the
	// explicit correction path and must never be the default write.
	Overwrite(ctx context.Context, r *Result) error

	Get(ctx context.Context, batchID uuid.UUID, agentType AgentType) (*Result, error)
	GetByBatch(ctx context.Context, batchID uuid.UUID) ([]*Result, error)
}
