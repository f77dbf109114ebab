package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"minerva/internal/domain/agentresult"
	"minerva/internal/domain/batch"
)

// ResultFinalizedEvent is published by the sink whenever an agent result
// reaches a terminal status. It is the aggregation trigger.
type ResultFinalizedEvent struct {
	BatchID   uuid.UUID             `json:"batch_id"`
	AgentType agentresult.AgentType `json:"agent_type"`
	Status    agentresult.Status    `json:"status"`
	At        time.Time             `json:"at"`
}

// BatchCompletedEvent is published once a batch's master insight exists
type BatchCompletedEvent struct {
	BatchID uuid.UUID       `json:"batch_id"`
	Ticker  string          `json:"ticker"`
	Summary string          `json:"summary"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}

// BatchFailedEvent is published when a batch reaches FAILED
type BatchFailedEvent struct {
	BatchID uuid.UUID    `json:"batch_id"`
	Ticker  string       `json:"ticker"`
	Status  batch.Status `json:"status"`
	Error   string       `json:"error"`
	At      time.Time    `json:"at"`
}
