package batch

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for batch data access
type Repository interface {
	Create(ctx context.Context, b *Batch) error
	GetByID(ctx context.Context, id uuid.UUID) (*Batch, error)
	List(ctx context.Context, limit int) ([]*Batch, error)

	// UpdateStatus performs an atomic guarded transition: the status moves to
	// `to` only if the current status is one of `from`. It reports whether a
	// row was updated. CompletedAt is set in the same statement when `to` is
	// terminal.
	UpdateStatus(ctx context.Context, id uuid.UUID, to Status, from ...Status) (bool, error)

	// MarkFailed moves a non-terminal batch to FAILED, sets CompletedAt and
	// appends errorMessage to the error log in a single atomic statement.
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) (bool, error)

	// AppendError appends failure context without changing the status; used
	// to accumulate partial failures before the terminal write.
	AppendError(ctx context.Context, id uuid.UUID, errorMessage string) error

	// ListNonTerminal returns batches still in PENDING or PROCESSING created
	// before the cutoff, oldest first.
	ListNonTerminal(ctx context.Context, createdBefore time.Time, limit int) ([]*Batch, error)
}
