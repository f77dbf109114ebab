package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"minerva/internal/domain/snapshot"
	"minerva/pkg/logger"
)

// SnapshotRepository implements snapshot.Repository using PostgreSQL
type SnapshotRepository struct {
	db  sqlx.ExtContext
	log *logger.Logger
}

// NewSnapshotRepository creates a new PostgreSQL snapshot repository
func NewSnapshotRepository(db sqlx.ExtContext) *SnapshotRepository {
	return &SnapshotRepository{
		db:  db,
		log: logger.Get().With("component", "snapshot_repository"),
	}
}

// Create inserts a snapshot. Immutable once written.
func (r *SnapshotRepository) Create(ctx context.Context, s *snapshot.Snapshot) error {
	query := `
		INSERT INTO ticker_snapshots (id, batch_id, ticker, period_start, period_end, series, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.BatchID,
		s.Ticker,
		s.PeriodStart,
		s.PeriodEnd,
		[]byte(s.Series),
		s.CreatedAt,
	)
	if err != nil {
		return wrapError(err, "failed to create snapshot")
	}

	return nil
}

// GetByBatch retrieves the snapshot written for a batch
func (r *SnapshotRepository) GetByBatch(ctx context.Context, batchID uuid.UUID) (*snapshot.Snapshot, error) {
	query := `
		SELECT id, batch_id, ticker, period_start, period_end, series, created_at
		FROM ticker_snapshots
		WHERE batch_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var s snapshot.Snapshot
	if err := sqlx.GetContext(ctx, r.db, &s, query, batchID); err != nil {
		return nil, wrapError(err, "failed to get snapshot")
	}

	return &s, nil
}

// GetLatestByTicker retrieves the most recent snapshot for a ticker
func (r *SnapshotRepository) GetLatestByTicker(ctx context.Context, ticker string) (*snapshot.Snapshot, error) {
	query := `
		SELECT id, batch_id, ticker, period_start, period_end, series, created_at
		FROM ticker_snapshots
		WHERE ticker = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var s snapshot.Snapshot
	if err := sqlx.GetContext(ctx, r.db, &s, query, ticker); err != nil {
		return nil, wrapError(err, "failed to get latest snapshot")
	}

	return &s, nil
}
