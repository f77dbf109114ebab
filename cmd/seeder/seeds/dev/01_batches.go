package dev

import (
	"context"

	"minerva/internal/domain/agentresult"
	"minerva/internal/domain/batch"
	"minerva/internal/testsupport/seeds"
)

// SeedBatches creates one batch per lifecycle stage so every dashboard view
// and API path has data in development.
func SeedBatches(ctx context.Context, s *seeds.Seeder) error {
	// Fully aggregated batch
	completed := s.Batch("AAPL").
		WithStatus(batch.StatusCompleted).
		WithResult(agentresult.AgentMarketData, agentresult.StatusFinished, `{"bars":250,"period_start":"2025-01-02","period_end":"2025-12-31"}`).
		WithResult(agentresult.AgentPatent, agentresult.StatusFinished, `{"patent_count":412,"trend":"growing"}`).
		WithResult(agentresult.AgentBacktest, agentresult.StatusFinished, `{"total_return":"0.31","sharpe_ratio":"1.4"}`).
		WithResult(agentresult.AgentAnnualStatement, agentresult.StatusFinished, `{"revenue_growth":"0.08"}`).
		WithInsight("Combined analysis for AAPL from 4 agents")

	if _, err := completed.Insert(ctx); err != nil {
		return err
	}

	// Aggregation still waiting on two agents
	inFlight := s.Batch("MSFT").
		WithStatus(batch.StatusProcessing).
		WithResult(agentresult.AgentMarketData, agentresult.StatusFinished, `{"bars":250}`).
		WithResult(agentresult.AgentPatent, agentresult.StatusProcessing, `{}`)

	if _, err := inFlight.Insert(ctx); err != nil {
		return err
	}

	// Failed batch with accumulated error context
	failed := s.Batch("NVDA").
		WithResult(agentresult.AgentMarketData, agentresult.StatusFailed, `{}`).
		WithFailure("agent market_data: no data for ticker in requested range")

	if _, err := failed.Insert(ctx); err != nil {
		return err
	}

	// Untouched batch for the sweeper and the market data agent to pick up
	_, err := s.Batch("GOOG").Insert(ctx)
	return err
}
