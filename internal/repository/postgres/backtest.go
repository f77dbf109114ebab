package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"minerva/internal/domain/backtest"
	"minerva/pkg/errors"
	"minerva/pkg/logger"
)

// BacktestRepository implements backtest.Repository using PostgreSQL
type BacktestRepository struct {
	db  sqlx.ExtContext
	log *logger.Logger
}

// NewBacktestRepository creates a new PostgreSQL backtest repository
func NewBacktestRepository(db sqlx.ExtContext) *BacktestRepository {
	return &BacktestRepository{
		db:  db,
		log: logger.Get().With("component", "backtest_repository"),
	}
}

// Create inserts the record with every quantitative column in one statement
func (r *BacktestRepository) Create(ctx context.Context, rec *backtest.Record) error {
	query := `
		INSERT INTO backtest_records (
			id, batch_id, ticker,
			alpha, beta_market, beta_size, beta_value, sharpe_ratio, max_drawdown,
			chart, ai_analysis, created_at, analyzed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.BatchID,
		rec.Ticker,
		rec.Alpha,
		rec.BetaMarket,
		rec.BetaSize,
		rec.BetaValue,
		rec.SharpeRatio,
		rec.MaxDrawdown,
		[]byte(rec.Chart),
		[]byte(rec.AIAnalysis),
		rec.CreatedAt,
		rec.AnalyzedAt,
	)
	if err != nil {
		return wrapError(err, "failed to create backtest record")
	}

	return nil
}

// GetByBatch retrieves the backtest record for a batch
func (r *BacktestRepository) GetByBatch(ctx context.Context, batchID uuid.UUID) (*backtest.Record, error) {
	query := `
		SELECT id, batch_id, ticker,
		       alpha, beta_market, beta_size, beta_value, sharpe_ratio, max_drawdown,
		       chart, ai_analysis, created_at, analyzed_at
		FROM backtest_records
		WHERE batch_id = $1
	`

	var rec backtest.Record
	if err := sqlx.GetContext(ctx, r.db, &rec, query, batchID); err != nil {
		return nil, wrapError(err, "failed to get backtest record")
	}

	return &rec, nil
}

// SetAnalysis patches the late qualitative payload onto an existing record
func (r *BacktestRepository) SetAnalysis(ctx context.Context, batchID uuid.UUID, analysis json.RawMessage) error {
	query := `
		UPDATE backtest_records
		SET ai_analysis = $2, analyzed_at = now()
		WHERE batch_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, batchID, []byte(analysis))
	if err != nil {
		return wrapError(err, "failed to set backtest analysis")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return wrapError(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Wrap(errors.ErrNotFound, "backtest record not found")
	}

	return nil
}
