package view

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"minerva/internal/domain/batch"
)

// BatchView is the denormalized read model for one batch: the batch row
// left-joined with its backtest record, patent insight and master insight.
// Every sibling field is nullable; dashboards rely on nulls to render
// partial, in-progress state.
type BatchView struct {
	BatchID     uuid.UUID    `db:"batch_id" json:"batch_id"`
	Ticker      string       `db:"ticker" json:"ticker"`
	Status      batch.Status `db:"status" json:"status"`
	ErrorLog    *string      `db:"error_log" json:"error_log"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	CompletedAt *time.Time   `db:"completed_at" json:"completed_at"`

	// Master insight
	InsightSummary *string         `db:"insight_summary" json:"insight_summary"`
	InsightPayload json.RawMessage `db:"insight_payload" json:"insight_payload"`

	// Backtest
	Alpha       *decimal.Decimal `db:"alpha" json:"alpha"`
	BetaMarket  *decimal.Decimal `db:"beta_market" json:"beta_market"`
	BetaSize    *decimal.Decimal `db:"beta_size" json:"beta_size"`
	BetaValue   *decimal.Decimal `db:"beta_value" json:"beta_value"`
	SharpeRatio *decimal.Decimal `db:"sharpe_ratio" json:"sharpe_ratio"`
	MaxDrawdown *decimal.Decimal `db:"max_drawdown" json:"max_drawdown"`
	Chart       json.RawMessage  `db:"chart" json:"chart"`
	AIAnalysis  json.RawMessage  `db:"ai_analysis" json:"ai_analysis"`

	// Patent
	PatentCount   *int            `db:"patent_count" json:"patent_count"`
	PatentSummary json.RawMessage `db:"patent_summary" json:"patent_summary"`
}
