package seeds

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"minerva/internal/domain/agentresult"
	"minerva/internal/domain/batch"
	"minerva/internal/domain/insight"
	pgrepo "minerva/internal/repository/postgres"
	"minerva/pkg/errors"
)

// Seeder builds deterministic development fixtures on top of the real
// repositories, so seeded rows obey the same constraints production writes
// do.
type Seeder struct {
	batches  *pgrepo.BatchRepository
	results  *pgrepo.AgentResultRepository
	insights *pgrepo.InsightRepository
}

func New(db *sqlx.DB) *Seeder {
	return &Seeder{
		batches:  pgrepo.NewBatchRepository(db),
		results:  pgrepo.NewAgentResultRepository(db),
		insights: pgrepo.NewInsightRepository(db),
	}
}

// Batch starts a batch fixture builder
func (s *Seeder) Batch(ticker string) *BatchBuilder {
	now := time.Now().UTC()
	return &BatchBuilder{
		seeder: s,
		entity: &batch.Batch{
			ID:        uuid.New(),
			Ticker:    ticker,
			Status:    batch.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// BatchBuilder assembles one batch and its dependent rows. Insert persists
// the batch first, then the attached results, then the insight, and finally
// walks the batch through the lifecycle to the requested status.
type BatchBuilder struct {
	seeder  *Seeder
	entity  *batch.Batch
	target  batch.Status
	failure string
	results []*agentresult.Result
	summary string
}

func (b *BatchBuilder) WithStatus(status batch.Status) *BatchBuilder {
	b.target = status
	return b
}

func (b *BatchBuilder) WithFailure(message string) *BatchBuilder {
	b.target = batch.StatusFailed
	b.failure = message
	return b
}

func (b *BatchBuilder) WithResult(agentType agentresult.AgentType, status agentresult.Status, payload string) *BatchBuilder {
	now := time.Now().UTC()
	b.results = append(b.results, &agentresult.Result{
		ID:        uuid.New(),
		BatchID:   b.entity.ID,
		AgentType: agentType,
		Status:    status,
		Payload:   json.RawMessage(payload),
		CreatedAt: now,
		UpdatedAt: now,
	})
	return b
}

// WithInsight attaches a master insight; only meaningful together with
// WithStatus(COMPLETED).
func (b *BatchBuilder) WithInsight(summary string) *BatchBuilder {
	b.summary = summary
	return b
}

func (b *BatchBuilder) Insert(ctx context.Context) (*batch.Batch, error) {
	if err := b.seeder.batches.Create(ctx, b.entity); err != nil {
		return nil, errors.Wrapf(err, "seed batch %s", b.entity.Ticker)
	}

	for _, r := range b.results {
		if _, err := b.seeder.results.Upsert(ctx, r); err != nil {
			return nil, errors.Wrapf(err, "seed result %s/%s", b.entity.Ticker, r.AgentType)
		}
	}

	if b.summary != "" {
		ins := &insight.Insight{
			ID:        uuid.New(),
			BatchID:   b.entity.ID,
			Summary:   b.summary,
			Payload:   json.RawMessage(fmt.Sprintf(`{"ticker":%q}`, b.entity.Ticker)),
			CreatedAt: time.Now().UTC(),
		}
		if _, err := b.seeder.insights.CreateIfAbsent(ctx, ins); err != nil {
			return nil, errors.Wrapf(err, "seed insight %s", b.entity.Ticker)
		}
	}

	if err := b.advance(ctx); err != nil {
		return nil, err
	}

	return b.entity, nil
}

// advance walks the guarded lifecycle instead of writing the status column
// directly, so seeds can never produce a row the state machine forbids.
func (b *BatchBuilder) advance(ctx context.Context) error {
	switch b.target {
	case "", batch.StatusPending:
		return nil
	case batch.StatusProcessing, batch.StatusCompleted:
		if err := b.transition(ctx, batch.StatusProcessing, batch.StatusPending); err != nil {
			return err
		}
		if b.target == batch.StatusProcessing {
			return nil
		}
		return b.transition(ctx, batch.StatusCompleted, batch.StatusProcessing)
	case batch.StatusFailed:
		message := b.failure
		if message == "" {
			message = "seeded failure"
		}
		applied, err := b.seeder.batches.MarkFailed(ctx, b.entity.ID, message)
		if err != nil {
			return errors.Wrapf(err, "seed %s: mark failed", b.entity.Ticker)
		}
		if !applied {
			return errors.Wrapf(errors.ErrInternal, "seed %s: cannot enter FAILED", b.entity.Ticker)
		}
		b.entity.Status = batch.StatusFailed
		return nil
	}
	return errors.Wrapf(errors.ErrInvalidInput, "seed %s: unknown target status %s", b.entity.Ticker, b.target)
}

func (b *BatchBuilder) transition(ctx context.Context, to batch.Status, from ...batch.Status) error {
	applied, err := b.seeder.batches.UpdateStatus(ctx, b.entity.ID, to, from...)
	if err != nil {
		return errors.Wrapf(err, "seed %s: transition to %s", b.entity.Ticker, to)
	}
	if !applied {
		return errors.Wrapf(errors.ErrInternal, "seed %s: cannot enter %s", b.entity.Ticker, to)
	}
	b.entity.Status = to
	return nil
}
