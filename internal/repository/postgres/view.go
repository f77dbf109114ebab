package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"minerva/internal/domain/view"
	"minerva/pkg/logger"
)

// ViewRepository implements view.Repository on top of the batch_overview
// view. Read-only.
type ViewRepository struct {
	db  sqlx.ExtContext
	log *logger.Logger
}

// NewViewRepository creates a new PostgreSQL view repository
func NewViewRepository(db sqlx.ExtContext) *ViewRepository {
	return &ViewRepository{
		db:  db,
		log: logger.Get().With("component", "view_repository"),
	}
}

const viewColumns = `
	batch_id, ticker, status, error_log, created_at, completed_at,
	insight_summary, insight_payload,
	alpha, beta_market, beta_size, beta_value, sharpe_ratio, max_drawdown,
	chart, ai_analysis,
	patent_count, patent_summary
`

// GetByBatch retrieves the flattened view row for one batch
func (r *ViewRepository) GetByBatch(ctx context.Context, batchID uuid.UUID) (*view.BatchView, error) {
	query := `SELECT ` + viewColumns + ` FROM batch_overview WHERE batch_id = $1`

	row := r.db.QueryRowxContext(ctx, query, batchID)
	v, err := scanView(row)
	if err != nil {
		return nil, wrapError(err, "failed to get batch view")
	}

	return v, nil
}

// List returns the most recent flattened view rows
func (r *ViewRepository) List(ctx context.Context, limit int) ([]*view.BatchView, error) {
	query := `SELECT ` + viewColumns + ` FROM batch_overview ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.QueryxContext(ctx, query, limit)
	if err != nil {
		return nil, wrapError(err, "failed to list batch views")
	}
	defer rows.Close()

	var views []*view.BatchView
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, wrapError(err, "failed to scan batch view")
		}
		views = append(views, v)
	}

	return views, nil
}

// rowScanner is satisfied by both *sqlx.Row and *sqlx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanView maps one joined row onto the read model, turning SQL NULLs into
// nil pointers rather than errors. Numeric columns come back as strings so
// the decimals survive without float rounding.
func scanView(row rowScanner) (*view.BatchView, error) {
	var (
		v              view.BatchView
		errorLog       sql.NullString
		completedAt    sql.NullTime
		insightSummary sql.NullString
		patentCount    sql.NullInt64
		metrics        [6]sql.NullString
	)

	err := row.Scan(
		&v.BatchID,
		&v.Ticker,
		&v.Status,
		&errorLog,
		&v.CreatedAt,
		&completedAt,
		&insightSummary,
		&v.InsightPayload,
		&metrics[0], // alpha
		&metrics[1], // beta_market
		&metrics[2], // beta_size
		&metrics[3], // beta_value
		&metrics[4], // sharpe_ratio
		&metrics[5], // max_drawdown
		&v.Chart,
		&v.AIAnalysis,
		&patentCount,
		&v.PatentSummary,
	)
	if err != nil {
		return nil, err
	}

	if errorLog.Valid {
		v.ErrorLog = &errorLog.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		v.CompletedAt = &t
	}
	if insightSummary.Valid {
		v.InsightSummary = &insightSummary.String
	}
	if patentCount.Valid {
		count := int(patentCount.Int64)
		v.PatentCount = &count
	}

	dests := []**decimal.Decimal{
		&v.Alpha, &v.BetaMarket, &v.BetaSize, &v.BetaValue, &v.SharpeRatio, &v.MaxDrawdown,
	}
	for i, m := range metrics {
		if !m.Valid {
			continue
		}
		d, err := decimal.NewFromString(m.String)
		if err != nil {
			return nil, err
		}
		*dests[i] = &d
	}

	return &v, nil
}
