package tracker

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"minerva/internal/domain/batch"
	"minerva/internal/metrics"
	"minerva/pkg/errors"
	"minerva/pkg/logger"
)

// Service owns the batch lifecycle state machine. Every status move goes
// through here; no other component writes batch status.
type Service struct {
	repo batch.Repository
	log  *logger.Logger
}

// NewService constructs a batch tracker service
func NewService(repo batch.Repository) *Service {
	return &Service{
		repo: repo,
		log:  logger.Get().With("component", "batch_tracker"),
	}
}

// Create allocates a new batch in PENDING
func (s *Service) Create(ctx context.Context, ticker string) (*batch.Batch, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "ticker is required")
	}

	now := time.Now().UTC()
	b := &batch.Batch{
		ID:        uuid.New(),
		Ticker:    ticker,
		Status:    batch.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, b); err != nil {
		return nil, errors.Wrap(err, "create batch")
	}

	metrics.BatchTransitions.WithLabelValues(batch.StatusPending.String()).Inc()
	s.log.Infow("Batch created", "batch_id", b.ID, "ticker", b.Ticker)
	return b, nil
}

// MarkProcessing moves PENDING→PROCESSING. Idempotent when already
// PROCESSING; rejected with ErrInvalidTransition from a terminal state.
func (s *Service) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	applied, err := s.repo.UpdateStatus(ctx, id, batch.StatusProcessing,
		batch.StatusPending, batch.StatusProcessing)
	if err != nil {
		return errors.Wrap(err, "mark processing")
	}
	if !applied {
		return s.transitionError(ctx, id, batch.StatusProcessing)
	}
	metrics.BatchTransitions.WithLabelValues(batch.StatusProcessing.String()).Inc()
	return nil
}

// MarkCompleted moves PROCESSING→COMPLETED and stamps the completion time.
// A batch must pass through PROCESSING first; completion from PENDING or
// from another terminal outcome is rejected.
func (s *Service) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	applied, err := s.repo.UpdateStatus(ctx, id, batch.StatusCompleted, batch.StatusProcessing)
	if err != nil {
		return errors.Wrap(err, "mark completed")
	}
	if !applied {
		return s.transitionError(ctx, id, batch.StatusCompleted)
	}

	metrics.BatchTransitions.WithLabelValues(batch.StatusCompleted.String()).Inc()
	s.log.Infow("Batch completed", "batch_id", id)
	return nil
}

// MarkFailed moves any non-terminal state to FAILED, stamps the completion
// time and appends errorMessage to the cumulative error log.
func (s *Service) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	applied, err := s.repo.MarkFailed(ctx, id, errorMessage)
	if err != nil {
		return errors.Wrap(err, "mark failed")
	}
	if !applied {
		return s.transitionError(ctx, id, batch.StatusFailed)
	}

	metrics.BatchTransitions.WithLabelValues(batch.StatusFailed.String()).Inc()
	s.log.Warnw("Batch failed", "batch_id", id, "error", errorMessage)
	return nil
}

// AppendError accumulates failure context on a batch that has not reached a
// terminal state yet; the status is left untouched.
func (s *Service) AppendError(ctx context.Context, id uuid.UUID, errorMessage string) error {
	if errorMessage == "" {
		return errors.Wrap(errors.ErrInvalidInput, "error message is required")
	}
	if err := s.repo.AppendError(ctx, id, errorMessage); err != nil {
		return errors.Wrap(err, "append error")
	}
	return nil
}

// GetStatus returns the current lifecycle status
func (s *Service) GetStatus(ctx context.Context, id uuid.UUID) (batch.Status, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", errors.Wrap(err, "get status")
	}
	return b.Status, nil
}

// Get returns the full batch row
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*batch.Batch, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get batch")
	}
	return b, nil
}

// List returns the most recent batches
func (s *Service) List(ctx context.Context, limit int) ([]*batch.Batch, error) {
	if limit <= 0 {
		limit = 50
	}
	batches, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list batches")
	}
	return batches, nil
}

// ListNonTerminal returns PENDING/PROCESSING batches created before the cutoff
func (s *Service) ListNonTerminal(ctx context.Context, createdBefore time.Time, limit int) ([]*batch.Batch, error) {
	batches, err := s.repo.ListNonTerminal(ctx, createdBefore, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list non-terminal batches")
	}
	return batches, nil
}

// transitionError distinguishes an unknown batch from an illegal move after
// a guarded update touched zero rows.
func (s *Service) transitionError(ctx context.Context, id uuid.UUID, to batch.Status) error {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return errors.Wrapf(errors.ErrNotFound, "batch %s", id)
		}
		return errors.Wrap(err, "resolve transition failure")
	}
	return errors.Wrapf(errors.ErrInvalidTransition, "batch %s is %s, cannot move to %s", id, b.Status, to)
}
