package patent

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Insight holds the patent agent's structured findings for a batch.
// Write-once.
type Insight struct {
	ID      uuid.UUID `db:"id"`
	BatchID uuid.UUID `db:"batch_id"`
	Ticker  string    `db:"ticker"`

	Summary     json.RawMessage `db:"summary"`
	PatentCount int             `db:"patent_count"`

	CreatedAt time.Time `db:"created_at"`
}
