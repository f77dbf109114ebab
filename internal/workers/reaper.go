package workers

import (
	"context"
	"fmt"
	"time"

	"minerva/internal/services/tracker"
	"minerva/pkg/errors"
)

const reaperBatchLimit = 200

// ReaperWorker force-fails batches that have been in flight longer than the
// deadline. Without it a batch whose agent died silently would stay
// PENDING or PROCESSING forever.
type ReaperWorker struct {
	*BaseWorker
	tracker  *tracker.Service
	deadline time.Duration
}

// NewReaperWorker creates a new stale batch reaper
func NewReaperWorker(tr *tracker.Service, interval, deadline time.Duration, enabled bool) *ReaperWorker {
	return &ReaperWorker{
		BaseWorker: NewBaseWorker("batch_reaper", interval, enabled),
		tracker:    tr,
		deadline:   deadline,
	}
}

// Run fails every non-terminal batch older than the deadline
func (w *ReaperWorker) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := time.Now().UTC().Add(-w.deadline)

	batches, err := w.tracker.ListNonTerminal(ctx, cutoff, reaperBatchLimit)
	if err != nil {
		w.RecordError(err, time.Since(start))
		return errors.Wrap(err, "list stale batches")
	}

	var merr errors.MultiError
	for _, b := range batches {
		if ctx.Err() != nil {
			break
		}

		msg := fmt.Sprintf("reaped: no terminal outcome within %s", w.deadline)
		if err := w.tracker.MarkFailed(ctx, b.ID, msg); err != nil {
			// A racing trigger may have closed the batch between the list
			// and the write
			if errors.Is(err, errors.ErrInvalidTransition) {
				continue
			}
			merr.Add(errors.Wrapf(err, "batch %s", b.ID))
			continue
		}

		w.Log().Warnw("Stale batch reaped",
			"batch_id", b.ID,
			"ticker", b.Ticker,
			"age", time.Since(b.CreatedAt),
		)
	}

	if merr.HasErrors() {
		w.RecordError(merr.ToError(), time.Since(start))
		return merr.ToError()
	}

	w.RecordRun(time.Since(start))
	return nil
}
