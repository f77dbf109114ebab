package backtest

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Record holds one backtest run for a batch. The quantitative fields are
// written atomically at row creation by the quant agent; AIAnalysis arrives
// later from an independent writer and is legitimately absent until then.
type Record struct {
	ID      uuid.UUID `db:"id"`
	BatchID uuid.UUID `db:"batch_id"`
	Ticker  string    `db:"ticker"`

	// Factor model metrics
	Alpha       decimal.Decimal `db:"alpha"`
	BetaMarket  decimal.Decimal `db:"beta_market"`
	BetaSize    decimal.Decimal `db:"beta_size"`
	BetaValue   decimal.Decimal `db:"beta_value"`
	SharpeRatio decimal.Decimal `db:"sharpe_ratio"`
	MaxDrawdown decimal.Decimal `db:"max_drawdown"`

	// Chart is the plot-ready series payload
	Chart json.RawMessage `db:"chart"`

	// AIAnalysis is the qualitative payload; nil while the second writer has
	// not reported yet, which is an in-progress state rather than an error
	AIAnalysis json.RawMessage `db:"ai_analysis"`

	CreatedAt  time.Time  `db:"created_at"`
	AnalyzedAt *time.Time `db:"analyzed_at"`
}
