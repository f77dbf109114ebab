package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"minerva/internal/domain/agentresult"
	"minerva/pkg/logger"
)

// AgentResultRepository implements agentresult.Repository using PostgreSQL
type AgentResultRepository struct {
	db  sqlx.ExtContext
	log *logger.Logger
}

// NewAgentResultRepository creates a new PostgreSQL agent result repository
func NewAgentResultRepository(db sqlx.ExtContext) *AgentResultRepository {
	return &AgentResultRepository{
		db:  db,
		log: logger.Get().With("component", "agent_result_repository"),
	}
}

// Upsert inserts or overwrites the result keyed on (batch_id, agent_type).
// The conditional DO UPDATE refuses to clobber a terminal row, so a retry
// racing a late success reports false instead of silently rewriting history.
func (r *AgentResultRepository) Upsert(ctx context.Context, res *agentresult.Result) (bool, error) {
	query := `
		INSERT INTO agent_results (id, batch_id, agent_type, status, payload, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (batch_id, agent_type) DO UPDATE
		SET status = EXCLUDED.status,
		    payload = EXCLUDED.payload,
		    error = EXCLUDED.error,
		    updated_at = EXCLUDED.updated_at
		WHERE agent_results.status = 'PROCESSING'
	`

	result, err := r.db.ExecContext(ctx, query,
		res.ID,
		res.BatchID,
		res.AgentType,
		res.Status,
		[]byte(res.Payload),
		res.Error,
		res.CreatedAt,
		res.UpdatedAt,
	)
	if err != nil {
		return false, wrapError(err, "failed to upsert agent result")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, wrapError(err, "failed to get rows affected")
	}

	return rows > 0, nil
}

// Overwrite unconditionally replaces the result for the key. Correction path
// only.
func (r *AgentResultRepository) Overwrite(ctx context.Context, res *agentresult.Result) error {
	query := `
		INSERT INTO agent_results (id, batch_id, agent_type, status, payload, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (batch_id, agent_type) DO UPDATE
		SET status = EXCLUDED.status,
		    payload = EXCLUDED.payload,
		    error = EXCLUDED.error,
		    updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		res.ID,
		res.BatchID,
		res.AgentType,
		res.Status,
		[]byte(res.Payload),
		res.Error,
		res.CreatedAt,
		res.UpdatedAt,
	)
	if err != nil {
		return wrapError(err, "failed to overwrite agent result")
	}

	return nil
}

// Get retrieves the result for one (batch, agent) key
func (r *AgentResultRepository) Get(ctx context.Context, batchID uuid.UUID, agentType agentresult.AgentType) (*agentresult.Result, error) {
	query := `
		SELECT id, batch_id, agent_type, status, payload, error, created_at, updated_at
		FROM agent_results
		WHERE batch_id = $1 AND agent_type = $2
	`

	var res agentresult.Result
	if err := sqlx.GetContext(ctx, r.db, &res, query, batchID, agentType); err != nil {
		return nil, wrapError(err, "failed to get agent result")
	}

	return &res, nil
}

// GetByBatch retrieves all results for a batch
func (r *AgentResultRepository) GetByBatch(ctx context.Context, batchID uuid.UUID) ([]*agentresult.Result, error) {
	query := `
		SELECT id, batch_id, agent_type, status, payload, error, created_at, updated_at
		FROM agent_results
		WHERE batch_id = $1
		ORDER BY agent_type
	`

	var results []*agentresult.Result
	if err := sqlx.SelectContext(ctx, r.db, &results, query, batchID); err != nil {
		return nil, wrapError(err, "failed to get agent results")
	}

	return results, nil
}
