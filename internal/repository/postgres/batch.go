package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"minerva/internal/domain/batch"
	"minerva/pkg/errors"
	"minerva/pkg/logger"
)

// BatchRepository implements batch.Repository using PostgreSQL
type BatchRepository struct {
	db  sqlx.ExtContext
	log *logger.Logger
}

// NewBatchRepository creates a new PostgreSQL batch repository
func NewBatchRepository(db sqlx.ExtContext) *BatchRepository {
	return &BatchRepository{
		db:  db,
		log: logger.Get().With("component", "batch_repository"),
	}
}

// Create inserts a new batch
func (r *BatchRepository) Create(ctx context.Context, b *batch.Batch) error {
	query := `
		INSERT INTO batches (id, ticker, status, error_log, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		b.ID,
		b.Ticker,
		b.Status,
		b.ErrorLog,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		return wrapError(err, "failed to create batch")
	}

	return nil
}

// GetByID retrieves a batch by id
func (r *BatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*batch.Batch, error) {
	query := `
		SELECT id, ticker, status, error_log, created_at, updated_at, completed_at
		FROM batches
		WHERE id = $1
	`

	var b batch.Batch
	if err := sqlx.GetContext(ctx, r.db, &b, query, id); err != nil {
		return nil, wrapError(err, "failed to get batch")
	}

	return &b, nil
}

// List returns the most recent batches
func (r *BatchRepository) List(ctx context.Context, limit int) ([]*batch.Batch, error) {
	query := `
		SELECT id, ticker, status, error_log, created_at, updated_at, completed_at
		FROM batches
		ORDER BY created_at DESC
		LIMIT $1
	`

	var batches []*batch.Batch
	if err := sqlx.SelectContext(ctx, r.db, &batches, query, limit); err != nil {
		return nil, wrapError(err, "failed to list batches")
	}

	return batches, nil
}

// UpdateStatus performs the guarded transition in a single atomic statement.
// The allowed-from predicate lives in the WHERE clause so concurrent writers
// cannot interleave a check with the set.
func (r *BatchRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to batch.Status, from ...batch.Status) (bool, error) {
	query := `
		UPDATE batches
		SET status = $2,
		    updated_at = now(),
		    completed_at = CASE WHEN $3 THEN now() ELSE completed_at END
		WHERE id = $1 AND status = ANY ($4)
	`

	result, err := r.db.ExecContext(ctx, query, id, to, to.IsTerminal(), pq.Array(statusStrings(from)))
	if err != nil {
		return false, wrapError(err, "failed to update batch status")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, wrapError(err, "failed to get rows affected")
	}

	return rows > 0, nil
}

// MarkFailed finalizes a non-terminal batch as FAILED and appends the error
// context in the same statement.
func (r *BatchRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) (bool, error) {
	query := `
		UPDATE batches
		SET status = $2,
		    updated_at = now(),
		    completed_at = now(),
		    error_log = COALESCE(error_log || E'\n', '') || $3
		WHERE id = $1 AND status = ANY ($4)
	`

	nonTerminal := statusStrings([]batch.Status{batch.StatusPending, batch.StatusProcessing})
	result, err := r.db.ExecContext(ctx, query, id, batch.StatusFailed, errorMessage, pq.Array(nonTerminal))
	if err != nil {
		return false, wrapError(err, "failed to mark batch failed")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, wrapError(err, "failed to get rows affected")
	}

	return rows > 0, nil
}

// AppendError accumulates failure context without touching the status
func (r *BatchRepository) AppendError(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE batches
		SET error_log = COALESCE(error_log || E'\n', '') || $2,
		    updated_at = now()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, errorMessage)
	if err != nil {
		return wrapError(err, "failed to append batch error")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return wrapError(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Wrap(errors.ErrNotFound, "batch not found")
	}

	return nil
}

// ListNonTerminal returns PENDING/PROCESSING batches created before the
// cutoff, oldest first.
func (r *BatchRepository) ListNonTerminal(ctx context.Context, createdBefore time.Time, limit int) ([]*batch.Batch, error) {
	query := `
		SELECT id, ticker, status, error_log, created_at, updated_at, completed_at
		FROM batches
		WHERE status = ANY ($1) AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3
	`

	nonTerminal := statusStrings([]batch.Status{batch.StatusPending, batch.StatusProcessing})

	var batches []*batch.Batch
	if err := sqlx.SelectContext(ctx, r.db, &batches, query, pq.Array(nonTerminal), createdBefore, limit); err != nil {
		return nil, wrapError(err, "failed to list non-terminal batches")
	}

	return batches, nil
}

func statusStrings(statuses []batch.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = s.String()
	}
	return out
}
