package marketdata

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"minerva/internal/adapters/marketdata"
	"minerva/internal/domain/agentresult"
	"minerva/internal/domain/batch"
	"minerva/internal/domain/snapshot"
	"minerva/internal/services/sink"
	"minerva/internal/services/tracker"
	"minerva/internal/workers"
	"minerva/pkg/errors"
)

const agentBatchLimit = 50

// resultPayload is the structured output this agent submits
type resultPayload struct {
	Ticker      string    `json:"ticker"`
	SnapshotID  uuid.UUID `json:"snapshot_id"`
	Bars        int       `json:"bars"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

// Agent fetches OHLCV history for batches that do not have a market data
// result yet, persists the raw series as a snapshot and submits the result
// through the sink like any external agent would.
type Agent struct {
	*workers.BaseWorker
	tracker   *tracker.Service
	sink      *sink.Service
	client    *marketdata.Client
	snapshots snapshot.Repository
	lookback  time.Duration
}

// NewAgent creates the in-process market data agent
func NewAgent(
	tr *tracker.Service,
	sk *sink.Service,
	client *marketdata.Client,
	snapshots snapshot.Repository,
	lookbackDays int,
	interval time.Duration,
	enabled bool,
) *Agent {
	return &Agent{
		BaseWorker: workers.NewBaseWorker("market_data_agent", interval, enabled),
		tracker:    tr,
		sink:       sk,
		client:     client,
		snapshots:  snapshots,
		lookback:   time.Duration(lookbackDays) * 24 * time.Hour,
	}
}

// Run picks up batches missing a market data result and processes them
func (a *Agent) Run(ctx context.Context) error {
	start := time.Now()

	batches, err := a.tracker.ListNonTerminal(ctx, time.Now().UTC(), agentBatchLimit)
	if err != nil {
		a.RecordError(err, time.Since(start))
		return errors.Wrap(err, "list batches")
	}

	var merr errors.MultiError
	for _, b := range batches {
		if ctx.Err() != nil {
			break
		}

		claimed, err := a.claim(ctx, b)
		if err != nil {
			merr.Add(errors.Wrapf(err, "batch %s", b.ID))
			continue
		}
		if !claimed {
			continue
		}

		if err := a.process(ctx, b); err != nil {
			merr.Add(errors.Wrapf(err, "batch %s", b.ID))
		}
	}

	if merr.HasErrors() {
		a.RecordError(merr.ToError(), time.Since(start))
		return merr.ToError()
	}

	a.RecordRun(time.Since(start))
	return nil
}

// claim registers a PROCESSING placeholder for this batch. A rejected write
// means another run already finalized the result; no work to do then.
func (a *Agent) claim(ctx context.Context, b *batch.Batch) (bool, error) {
	existing, err := a.sink.Get(ctx, b.ID, agentresult.AgentMarketData)
	if err == nil && existing.Status.IsTerminal() {
		return false, nil
	}
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return false, errors.Wrap(err, "check existing result")
	}

	_, err = a.sink.Submit(ctx, sink.SubmitParams{
		BatchID:   b.ID,
		AgentType: agentresult.AgentMarketData,
		Status:    agentresult.StatusProcessing,
	})
	if err != nil {
		if errors.Is(err, errors.ErrAlreadyFinalized) {
			return false, nil
		}
		return false, errors.Wrap(err, "claim batch")
	}
	return true, nil
}

// process fetches the series, snapshots it and finalizes the result
func (a *Agent) process(ctx context.Context, b *batch.Batch) error {
	end := time.Now().UTC()
	begin := end.Add(-a.lookback)

	series, err := a.client.FetchOHLCV(ctx, []string{b.Ticker}, begin, end, true)
	if err != nil {
		// Transient upstream trouble: leave the result PROCESSING and let a
		// later run retry. Definitive rejections finalize as FAILED.
		if errors.IsRetryable(err) {
			a.Log().Warnw("Market data fetch deferred",
				"batch_id", b.ID, "ticker", b.Ticker,
				"range", marketdata.DateRange(begin, end), "error", err)
			return nil
		}
		return a.failResult(ctx, b, err)
	}

	s, ok := series[b.Ticker]
	if !ok || len(s.Bars) == 0 {
		return a.failResult(ctx, b,
			errors.Wrapf(errors.ErrNotFound, "no market data for %s", b.Ticker))
	}

	raw, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "encode series")
	}

	batchID := b.ID
	snap := &snapshot.Snapshot{
		ID:          uuid.New(),
		BatchID:     &batchID,
		Ticker:      b.Ticker,
		PeriodStart: s.Bars[0].Date,
		PeriodEnd:   s.Bars[len(s.Bars)-1].Date,
		Series:      raw,
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.snapshots.Create(ctx, snap); err != nil {
		return errors.Wrap(err, "persist snapshot")
	}

	payload, err := json.Marshal(resultPayload{
		Ticker:      b.Ticker,
		SnapshotID:  snap.ID,
		Bars:        len(s.Bars),
		PeriodStart: snap.PeriodStart,
		PeriodEnd:   snap.PeriodEnd,
	})
	if err != nil {
		return errors.Wrap(err, "encode result payload")
	}

	_, err = a.sink.Submit(ctx, sink.SubmitParams{
		BatchID:   b.ID,
		AgentType: agentresult.AgentMarketData,
		Status:    agentresult.StatusFinished,
		Payload:   payload,
	})
	if err != nil {
		if errors.Is(err, errors.ErrAlreadyFinalized) {
			return nil
		}
		return errors.Wrap(err, "finalize result")
	}

	a.Log().Infow("Market data collected",
		"batch_id", b.ID, "ticker", b.Ticker, "bars", len(s.Bars))
	return nil
}

func (a *Agent) failResult(ctx context.Context, b *batch.Batch, cause error) error {
	_, err := a.sink.Submit(ctx, sink.SubmitParams{
		BatchID:   b.ID,
		AgentType: agentresult.AgentMarketData,
		Status:    agentresult.StatusFailed,
		Error:     cause.Error(),
	})
	if err != nil && !errors.Is(err, errors.ErrAlreadyFinalized) {
		return errors.Wrap(err, "record failure")
	}

	a.Log().Warnw("Market data agent failed batch",
		"batch_id", b.ID, "ticker", b.Ticker, "error", cause)
	return nil
}
