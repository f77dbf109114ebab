package view

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines read-only access to the denormalized batch view
type Repository interface {
	GetByBatch(ctx context.Context, batchID uuid.UUID) (*BatchView, error)
	List(ctx context.Context, limit int) ([]*BatchView, error)
}
