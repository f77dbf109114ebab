package patent

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for patent insight data access
type Repository interface {
	Create(ctx context.Context, ins *Insight) error
	GetByBatch(ctx context.Context, batchID uuid.UUID) (*Insight, error)
}
