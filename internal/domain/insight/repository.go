package insight

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for master insight data access
type Repository interface {
	// CreateIfAbsent inserts the insight unless one already exists for the
	// batch. The per-batch uniqueness constraint is the concurrency guard for
	// redundant aggregation triggers; a lost race reports false, nil.
	CreateIfAbsent(ctx context.Context, ins *Insight) (bool, error)

	GetByBatch(ctx context.Context, batchID uuid.UUID) (*Insight, error)
}
