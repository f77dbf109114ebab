package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"minerva/internal/domain/patent"
	"minerva/pkg/logger"
)

// PatentRepository implements patent.Repository using PostgreSQL
type PatentRepository struct {
	db  sqlx.ExtContext
	log *logger.Logger
}

// NewPatentRepository creates a new PostgreSQL patent insight repository
func NewPatentRepository(db sqlx.ExtContext) *PatentRepository {
	return &PatentRepository{
		db:  db,
		log: logger.Get().With("component", "patent_repository"),
	}
}

// Create inserts a patent insight. Write-once per batch.
func (r *PatentRepository) Create(ctx context.Context, ins *patent.Insight) error {
	query := `
		INSERT INTO patent_insights (id, batch_id, ticker, summary, patent_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		ins.ID,
		ins.BatchID,
		ins.Ticker,
		[]byte(ins.Summary),
		ins.PatentCount,
		ins.CreatedAt,
	)
	if err != nil {
		return wrapError(err, "failed to create patent insight")
	}

	return nil
}

// GetByBatch retrieves the patent insight for a batch
func (r *PatentRepository) GetByBatch(ctx context.Context, batchID uuid.UUID) (*patent.Insight, error) {
	query := `
		SELECT id, batch_id, ticker, summary, patent_count, created_at
		FROM patent_insights
		WHERE batch_id = $1
	`

	var ins patent.Insight
	if err := sqlx.GetContext(ctx, r.db, &ins, query, batchID); err != nil {
		return nil, wrapError(err, "failed to get patent insight")
	}

	return &ins, nil
}
