package view

import (
	"context"
	"time"

	"github.com/google/uuid"

	"minerva/internal/domain/view"
	"minerva/internal/metrics"
	"minerva/pkg/errors"
	"minerva/pkg/logger"
)

// Cache is the slice of the Redis adapter the view service uses. IsMiss
// classifies the adapter's absent-key error.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Service serves the denormalized per-batch read model. Terminal batches
// are immutable so their views are cached; in-flight batches always hit
// storage.
type Service struct {
	views  view.Repository
	cache  Cache
	isMiss func(error) bool
	ttl    time.Duration
	log    *logger.Logger
}

// NewService constructs a read view service. cache may be nil.
func NewService(views view.Repository, cache Cache, isMiss func(error) bool, ttl time.Duration) *Service {
	return &Service{
		views:  views,
		cache:  cache,
		isMiss: isMiss,
		ttl:    ttl,
		log:    logger.Get().With("component", "view_builder"),
	}
}

// GetBatchView returns the flattened view for one batch, with missing
// sibling records surfaced as nulls rather than errors.
func (s *Service) GetBatchView(ctx context.Context, batchID uuid.UUID) (*view.BatchView, error) {
	key := "view:" + batchID.String()

	if s.cache != nil {
		var cached view.BatchView
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			metrics.ViewCacheLookups.WithLabelValues("hit").Inc()
			return &cached, nil
		}
		metrics.ViewCacheLookups.WithLabelValues("miss").Inc()
		if s.isMiss == nil || !s.isMiss(err) {
			s.log.Warnw("View cache read failed", "batch_id", batchID, "error", err)
		}
	}

	v, err := s.views.GetByBatch(ctx, batchID)
	if err != nil {
		return nil, errors.Wrap(err, "get batch view")
	}

	// Only terminal batches are safe to cache: their view rows never change
	if s.cache != nil && v.Status.IsTerminal() {
		if err := s.cache.Set(ctx, key, v, s.ttl); err != nil {
			s.log.Warnw("View cache write failed", "batch_id", batchID, "error", err)
		}
	}

	return v, nil
}

// List returns the most recent batch views
func (s *Service) List(ctx context.Context, limit int) ([]*view.BatchView, error) {
	if limit <= 0 {
		limit = 50
	}
	views, err := s.views.List(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list batch views")
	}
	return views, nil
}
