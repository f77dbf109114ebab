package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"minerva/internal/domain/agentresult"
	"minerva/internal/domain/batch"
	"minerva/internal/domain/insight"
	"minerva/internal/events"
	"minerva/internal/metrics"
	"minerva/pkg/errors"
	"minerva/pkg/logger"
)

// Tracker is the slice of the batch tracker the aggregator drives
type Tracker interface {
	Get(ctx context.Context, id uuid.UUID) (*batch.Batch, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
}

// Synthesizer turns a full set of finished agent results into the master
// insight content. Implementations must be deterministic enough that
// concurrent invocations for the same batch are interchangeable; only one
// of their outputs is ever persisted.
type Synthesizer interface {
	Synthesize(ctx context.Context, b *batch.Batch, results []*agentresult.Result) (summary string, payload json.RawMessage, err error)
}

// Locker is the advisory lock surface. Losing or skipping the lock never
// breaks correctness; the insight uniqueness constraint does the real work.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// Publisher is the slice of the event publisher the aggregator needs
type Publisher interface {
	PublishBatchCompleted(ctx context.Context, event events.BatchCompletedEvent) error
	PublishBatchFailed(ctx context.Context, event events.BatchFailedEvent) error
}

// Service decides when a batch is done. Each trigger re-reads the full
// result set and either does nothing, fails the batch, or synthesizes the
// master insight exactly once.
type Service struct {
	tracker  Tracker
	results  agentresult.Repository
	insights insight.Repository
	synth    Synthesizer

	required []agentresult.AgentType

	locker    Locker
	lockTTL   time.Duration
	publisher Publisher

	log *logger.Logger
}

// NewService constructs an aggregator service. locker and publisher may be
// nil. The required agent set must not be empty: an empty set would
// complete every batch immediately with an insight synthesized from
// nothing.
func NewService(
	tracker Tracker,
	results agentresult.Repository,
	insights insight.Repository,
	synth Synthesizer,
	required []agentresult.AgentType,
	locker Locker,
	lockTTL time.Duration,
	publisher Publisher,
) (*Service, error) {
	if len(required) == 0 {
		return nil, errors.Wrap(errors.ErrConfiguration, "required agent set is empty")
	}
	for _, t := range required {
		if !t.Valid() {
			return nil, errors.Wrapf(errors.ErrConfiguration, "unknown required agent type %q", t)
		}
	}
	if synth == nil {
		synth = &PayloadJoinSynthesizer{}
	}

	return &Service{
		tracker:   tracker,
		results:   results,
		insights:  insights,
		synth:     synth,
		required:  required,
		locker:    locker,
		lockTTL:   lockTTL,
		publisher: publisher,
		log:       logger.Get().With("component", "aggregator"),
	}, nil
}

// RequiredAgents returns the configured required agent set
func (s *Service) RequiredAgents() []agentresult.AgentType {
	out := make([]agentresult.AgentType, len(s.required))
	copy(out, s.required)
	return out
}

// CheckBatch evaluates one batch against the required agent set. It is safe
// to call any number of times, concurrently, for batches in any state:
// redundant triggers converge on the same single outcome.
func (s *Service) CheckBatch(ctx context.Context, batchID uuid.UUID) error {
	if s.locker != nil {
		acquired, err := s.locker.AcquireLock(ctx, "aggregate:"+batchID.String(), s.lockTTL)
		if err != nil {
			s.log.Warnw("Lock acquire failed, proceeding without it",
				"batch_id", batchID, "error", err)
		} else if !acquired {
			s.log.Debugw("Another trigger holds the batch", "batch_id", batchID)
			return nil
		} else {
			defer func() {
				if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), "aggregate:"+batchID.String()); err != nil {
					s.log.Warnw("Lock release failed", "batch_id", batchID, "error", err)
				}
			}()
		}
	}

	b, err := s.tracker.Get(ctx, batchID)
	if err != nil {
		return errors.Wrap(err, "load batch")
	}
	if b.Status.IsTerminal() {
		metrics.AggregationChecks.WithLabelValues("noop").Inc()
		return nil
	}

	// First result activity moves the batch out of PENDING. A concurrent
	// trigger may have raced us into a terminal state; that is a no-op here.
	if err := s.tracker.MarkProcessing(ctx, batchID); err != nil {
		if errors.Is(err, errors.ErrInvalidTransition) {
			return nil
		}
		return errors.Wrap(err, "mark processing")
	}

	results, err := s.results.GetByBatch(ctx, batchID)
	if err != nil {
		return errors.Wrap(err, "load agent results")
	}

	byType := make(map[agentresult.AgentType]*agentresult.Result, len(results))
	for _, r := range results {
		byType[r.AgentType] = r
	}

	var failed []*agentresult.Result
	for _, t := range s.required {
		r, ok := byType[t]
		if !ok || !r.Status.IsTerminal() {
			s.log.Debugw("Batch not ready", "batch_id", batchID, "waiting_on", t)
			metrics.AggregationChecks.WithLabelValues("pending").Inc()
			return nil
		}
		if r.Status == agentresult.StatusFailed {
			failed = append(failed, r)
		}
	}

	if len(failed) > 0 {
		return s.fail(ctx, b, failed)
	}
	return s.complete(ctx, b, results)
}

// fail drives a batch whose required set is complete but contains failures
func (s *Service) fail(ctx context.Context, b *batch.Batch, failed []*agentresult.Result) error {
	var merr errors.MultiError
	for _, r := range failed {
		msg := "no error detail"
		if r.Error != nil {
			msg = *r.Error
		}
		merr.Add(fmt.Errorf("agent %s: %s", r.AgentType, msg))
	}

	if err := s.tracker.MarkFailed(ctx, b.ID, merr.Error()); err != nil {
		if errors.Is(err, errors.ErrInvalidTransition) {
			return nil
		}
		return errors.Wrap(err, "mark failed")
	}

	metrics.AggregationChecks.WithLabelValues("failed").Inc()
	s.log.Warnw("Batch failed aggregation",
		"batch_id", b.ID, "ticker", b.Ticker, "failed_agents", len(failed))

	if s.publisher != nil {
		event := events.BatchFailedEvent{
			BatchID: b.ID,
			Ticker:  b.Ticker,
			Status:  batch.StatusFailed,
			Error:   merr.Error(),
			At:      time.Now().UTC(),
		}
		if err := s.publisher.PublishBatchFailed(ctx, event); err != nil {
			s.log.Errorw("Failed to publish batch failure", "batch_id", b.ID, "error", err)
		}
	}
	return nil
}

// complete synthesizes and persists the master insight, then closes the
// batch. The uniqueness constraint on insights makes the persist step the
// single point of convergence for concurrent triggers.
func (s *Service) complete(ctx context.Context, b *batch.Batch, results []*agentresult.Result) error {
	summary, payload, err := s.synth.Synthesize(ctx, b, results)
	if err != nil {
		return errors.Wrap(err, "synthesize insight")
	}

	ins := &insight.Insight{
		ID:        uuid.New(),
		BatchID:   b.ID,
		Summary:   summary,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	created, err := s.insights.CreateIfAbsent(ctx, ins)
	if err != nil {
		return errors.Wrap(err, "persist insight")
	}

	if err := s.tracker.MarkCompleted(ctx, b.ID); err != nil {
		// A concurrent trigger already closed the batch
		if !errors.Is(err, errors.ErrInvalidTransition) {
			return errors.Wrap(err, "mark completed")
		}
	}

	if !created {
		metrics.AggregationChecks.WithLabelValues("noop").Inc()
		return nil
	}

	metrics.AggregationChecks.WithLabelValues("completed").Inc()
	metrics.InsightsCreated.Inc()
	s.log.Infow("Batch aggregated", "batch_id", b.ID, "ticker", b.Ticker)

	if s.publisher != nil {
		event := events.BatchCompletedEvent{
			BatchID: b.ID,
			Ticker:  b.Ticker,
			Summary: summary,
			Payload: payload,
			At:      time.Now().UTC(),
		}
		if err := s.publisher.PublishBatchCompleted(ctx, event); err != nil {
			s.log.Errorw("Failed to publish batch completion", "batch_id", b.ID, "error", err)
		}
	}
	return nil
}

// PayloadJoinSynthesizer is the default synthesis: a deterministic join of
// the finished agent payloads keyed by agent type.
type PayloadJoinSynthesizer struct{}

// Synthesize merges agent payloads into one document
func (PayloadJoinSynthesizer) Synthesize(_ context.Context, b *batch.Batch, results []*agentresult.Result) (string, json.RawMessage, error) {
	agents := make(map[string]json.RawMessage, len(results))
	names := make([]string, 0, len(results))
	for _, r := range results {
		if r.Status != agentresult.StatusFinished {
			continue
		}
		p := r.Payload
		if len(p) == 0 {
			p = json.RawMessage(`null`)
		}
		agents[r.AgentType.String()] = p
		names = append(names, r.AgentType.String())
	}
	sort.Strings(names)

	payload, err := json.Marshal(map[string]interface{}{
		"ticker": b.Ticker,
		"agents": agents,
	})
	if err != nil {
		return "", nil, errors.Wrap(err, "encode insight payload")
	}

	summary := fmt.Sprintf("Combined analysis for %s from %d agents", b.Ticker, len(names))
	return summary, payload, nil
}
