package agentresult

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Result is one agent's raw output for a batch. For a given
// (batch_id, agent_type) pair exactly one row exists; repeated submissions
// overwrite it while it is still PROCESSING.
type Result struct {
	ID        uuid.UUID `db:"id"`
	BatchID   uuid.UUID `db:"batch_id"`
	AgentType AgentType `db:"agent_type"`
	Status    Status    `db:"status"`

	// Payload holds the agent's structured output; shape is owned by the agent
	Payload json.RawMessage `db:"payload"`

	// Error carries failure context when Status is FAILED
	Error *string `db:"error"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// AgentType identifies one kind of analysis producer. The set is closed;
// extending it is a schema/config change, never a runtime one.
type AgentType string

const (
	AgentMarketData      AgentType = "market_data"
	AgentPatent          AgentType = "patent"
	AgentBacktest        AgentType = "backtest"
	AgentAnnualStatement AgentType = "annual_statement"
)

// AllAgentTypes lists every known producer identity
func AllAgentTypes() []AgentType {
	return []AgentType{AgentMarketData, AgentPatent, AgentBacktest, AgentAnnualStatement}
}

// Valid checks if the agent type is part of the closed set
func (t AgentType) Valid() bool {
	switch t {
	case AgentMarketData, AgentPatent, AgentBacktest, AgentAnnualStatement:
		return true
	}
	return false
}

// String returns string representation
func (t AgentType) String() string {
	return string(t)
}

// Status defines an agent result's lifecycle status
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusFinished   Status = "FINISHED"
	StatusFailed     Status = "FAILED"
)

// Valid checks if the result status is valid
func (s Status) Valid() bool {
	switch s {
	case StatusProcessing, StatusFinished, StatusFailed:
		return true
	}
	return false
}

// String returns string representation
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if the agent's unit of work is done
func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusFailed
}
