package workers

import (
	"context"
	"time"

	"minerva/internal/services/aggregator"
	"minerva/internal/services/tracker"
	"minerva/pkg/errors"
)

const sweeperBatchLimit = 200

// SweeperWorker re-evaluates non-terminal batches on an interval. It is the
// safety net behind the event-driven trigger: a lost or unpublished
// results.finalized event only delays aggregation until the next sweep.
type SweeperWorker struct {
	*BaseWorker
	tracker    *tracker.Service
	aggregator *aggregator.Service
}

// NewSweeperWorker creates a new batch sweeper
func NewSweeperWorker(tr *tracker.Service, agg *aggregator.Service, interval time.Duration, enabled bool) *SweeperWorker {
	return &SweeperWorker{
		BaseWorker: NewBaseWorker("batch_sweeper", interval, enabled),
		tracker:    tr,
		aggregator: agg,
	}
}

// Run checks every non-terminal batch once
func (w *SweeperWorker) Run(ctx context.Context) error {
	start := time.Now()

	batches, err := w.tracker.ListNonTerminal(ctx, time.Now().UTC(), sweeperBatchLimit)
	if err != nil {
		w.RecordError(err, time.Since(start))
		return errors.Wrap(err, "list non-terminal batches")
	}

	var merr errors.MultiError
	checked := 0
	for _, b := range batches {
		if ctx.Err() != nil {
			break
		}
		if err := w.aggregator.CheckBatch(ctx, b.ID); err != nil {
			merr.Add(errors.Wrapf(err, "batch %s", b.ID))
			continue
		}
		checked++
	}

	if merr.HasErrors() {
		w.RecordError(merr.ToError(), time.Since(start))
		return merr.ToError()
	}

	if checked > 0 {
		w.Log().Debugw("Sweep finished", "checked", checked)
	}
	w.RecordRun(time.Since(start))
	return nil
}
