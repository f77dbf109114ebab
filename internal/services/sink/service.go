package sink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"minerva/internal/domain/agentresult"
	"minerva/internal/events"
	"minerva/internal/metrics"
	"minerva/pkg/errors"
	"minerva/pkg/logger"
)

// Publisher is the slice of the event publisher the sink needs
type Publisher interface {
	PublishResultFinalized(ctx context.Context, event events.ResultFinalizedEvent) error
}

// Service accepts raw agent outputs. It writes result rows and announces
// terminal ones; it never touches batch status, that belongs to the tracker
// and the aggregator.
type Service struct {
	results   agentresult.Repository
	publisher Publisher
	log       *logger.Logger
}

// NewService constructs an agent result sink service. The publisher may be
// nil, in which case finalized results rely on the sweeper to get picked up.
func NewService(results agentresult.Repository, publisher Publisher) *Service {
	return &Service{
		results:   results,
		publisher: publisher,
		log:       logger.Get().With("component", "result_sink"),
	}
}

// SubmitParams carries one agent submission
type SubmitParams struct {
	BatchID   uuid.UUID
	AgentType agentresult.AgentType
	Status    agentresult.Status
	Payload   json.RawMessage
	Error     string
}

// Validate checks the submission shape
func (p SubmitParams) Validate() error {
	if p.BatchID == uuid.Nil {
		return errors.Wrap(errors.ErrInvalidInput, "batch id is required")
	}
	if !p.AgentType.Valid() {
		return errors.Wrapf(errors.ErrConfiguration, "unknown agent type %q", p.AgentType)
	}
	if !p.Status.Valid() {
		return errors.Wrapf(errors.ErrInvalidInput, "unknown result status %q", p.Status)
	}
	return nil
}

// Submit records one agent's output for a batch. Repeated submissions for
// the same (batch, agent) pair replace the row while it is still
// PROCESSING; once a terminal status has landed further submissions are
// rejected with ErrAlreadyFinalized.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (*agentresult.Result, error) {
	r, err := s.write(ctx, params, false)
	if err != nil {
		return nil, err
	}

	s.log.Infow("Agent result submitted",
		"batch_id", params.BatchID,
		"agent_type", params.AgentType,
		"status", params.Status,
	)

	s.announce(ctx, r)
	return r, nil
}

// Resubmit replaces an agent's result regardless of its current status.
// This is the explicit correction path; routine retries go through Submit.
func (s *Service) Resubmit(ctx context.Context, params SubmitParams) (*agentresult.Result, error) {
	r, err := s.write(ctx, params, true)
	if err != nil {
		return nil, err
	}

	s.log.Warnw("Agent result overwritten",
		"batch_id", params.BatchID,
		"agent_type", params.AgentType,
		"status", params.Status,
	)

	s.announce(ctx, r)
	return r, nil
}

// Get returns one agent's result for a batch
func (s *Service) Get(ctx context.Context, batchID uuid.UUID, agentType agentresult.AgentType) (*agentresult.Result, error) {
	if !agentType.Valid() {
		return nil, errors.Wrapf(errors.ErrConfiguration, "unknown agent type %q", agentType)
	}
	r, err := s.results.Get(ctx, batchID, agentType)
	if err != nil {
		return nil, errors.Wrap(err, "get agent result")
	}
	return r, nil
}

// GetByBatch returns every result recorded for a batch
func (s *Service) GetByBatch(ctx context.Context, batchID uuid.UUID) ([]*agentresult.Result, error) {
	results, err := s.results.GetByBatch(ctx, batchID)
	if err != nil {
		return nil, errors.Wrap(err, "list agent results")
	}
	return results, nil
}

func (s *Service) write(ctx context.Context, params SubmitParams, force bool) (*agentresult.Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	r := &agentresult.Result{
		ID:        uuid.New(),
		BatchID:   params.BatchID,
		AgentType: params.AgentType,
		Status:    params.Status,
		Payload:   params.Payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if params.Error != "" {
		r.Error = &params.Error
	}

	if force {
		if err := s.results.Overwrite(ctx, r); err != nil {
			return nil, errors.Wrap(err, "overwrite agent result")
		}
		metrics.ResultSubmissions.WithLabelValues(params.AgentType.String(), params.Status.String()).Inc()
		return r, nil
	}

	applied, err := s.results.Upsert(ctx, r)
	if err != nil {
		return nil, errors.Wrap(err, "upsert agent result")
	}
	if !applied {
		metrics.ResultRejections.WithLabelValues(params.AgentType.String()).Inc()
		return nil, errors.Wrapf(errors.ErrAlreadyFinalized,
			"result for batch %s agent %s", params.BatchID, params.AgentType)
	}

	metrics.ResultSubmissions.WithLabelValues(params.AgentType.String(), params.Status.String()).Inc()
	return r, nil
}

// announce publishes a trigger event for terminal results. Publish failures
// are logged, not returned: the row is already durable and the sweeper will
// pick the batch up regardless.
func (s *Service) announce(ctx context.Context, r *agentresult.Result) {
	if s.publisher == nil || !r.Status.IsTerminal() {
		return
	}

	event := events.ResultFinalizedEvent{
		BatchID:   r.BatchID,
		AgentType: r.AgentType,
		Status:    r.Status,
		At:        r.UpdatedAt,
	}
	if err := s.publisher.PublishResultFinalized(ctx, event); err != nil {
		s.log.Errorw("Failed to announce finalized result",
			"batch_id", r.BatchID,
			"agent_type", r.AgentType,
			"error", err,
		)
	}
}
