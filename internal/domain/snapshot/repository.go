package snapshot

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for financial snapshot data access
type Repository interface {
	Create(ctx context.Context, s *Snapshot) error
	GetByBatch(ctx context.Context, batchID uuid.UUID) (*Snapshot, error)
	GetLatestByTicker(ctx context.Context, ticker string) (*Snapshot, error)
}
