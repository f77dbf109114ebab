package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"minerva/internal/domain/insight"
	"minerva/pkg/logger"
)

// InsightRepository implements insight.Repository using PostgreSQL
type InsightRepository struct {
	db  sqlx.ExtContext
	log *logger.Logger
}

// NewInsightRepository creates a new PostgreSQL master insight repository
func NewInsightRepository(db sqlx.ExtContext) *InsightRepository {
	return &InsightRepository{
		db:  db,
		log: logger.Get().With("component", "insight_repository"),
	}
}

// CreateIfAbsent inserts the insight unless the batch already has one. The
// unique constraint on batch_id absorbs duplicate-insert races from
// concurrent aggregation triggers.
func (r *InsightRepository) CreateIfAbsent(ctx context.Context, ins *insight.Insight) (bool, error) {
	query := `
		INSERT INTO master_insights (id, batch_id, summary, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (batch_id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		ins.ID,
		ins.BatchID,
		ins.Summary,
		[]byte(ins.Payload),
		ins.CreatedAt,
	)
	if err != nil {
		return false, wrapError(err, "failed to create master insight")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, wrapError(err, "failed to get rows affected")
	}

	return rows > 0, nil
}

// GetByBatch retrieves the insight for a batch
func (r *InsightRepository) GetByBatch(ctx context.Context, batchID uuid.UUID) (*insight.Insight, error) {
	query := `
		SELECT id, batch_id, summary, payload, created_at
		FROM master_insights
		WHERE batch_id = $1
	`

	var ins insight.Insight
	if err := sqlx.GetContext(ctx, r.db, &ins, query, batchID); err != nil {
		return nil, wrapError(err, "failed to get master insight")
	}

	return &ins, nil
}
