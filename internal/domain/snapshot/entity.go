package snapshot

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Snapshot is the raw market time series fetched for a ticker over a date
// range. Immutable once written. BatchID is nil for standalone fetches done
// outside a tracked analysis run.
type Snapshot struct {
	ID      uuid.UUID  `db:"id"`
	BatchID *uuid.UUID `db:"batch_id"`
	Ticker  string     `db:"ticker"`

	PeriodStart time.Time `db:"period_start"`
	PeriodEnd   time.Time `db:"period_end"`

	// Series is the OHLCV payload as returned by the market data service
	Series json.RawMessage `db:"series"`

	CreatedAt time.Time `db:"created_at"`
}
