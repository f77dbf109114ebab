package insight

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Insight is the synthesized record produced once every required agent
// output for a batch reached FINISHED. At most one exists per batch.
type Insight struct {
	ID      uuid.UUID `db:"id"`
	BatchID uuid.UUID `db:"batch_id"`

	Summary string          `db:"summary"`
	Payload json.RawMessage `db:"payload"`

	CreatedAt time.Time `db:"created_at"`
}
