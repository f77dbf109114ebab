package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minerva/internal/domain/agentresult"
	"minerva/internal/testsupport"
	"minerva/pkg/errors"
)

func newResult(batchID uuid.UUID, agentType agentresult.AgentType, status agentresult.Status, payload string) *agentresult.Result {
	now := time.Now().UTC()
	return &agentresult.Result{
		ID:        uuid.New(),
		BatchID:   batchID,
		AgentType: agentType,
		Status:    status,
		Payload:   json.RawMessage(payload),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestAgentResultRepository_UpsertWhileProcessing(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	repo := NewAgentResultRepository(testDB.Tx())
	ctx := context.Background()

	b := newTestBatch(t, testDB.Tx(), "AAPL")

	applied, err := repo.Upsert(ctx, newResult(b.ID, agentresult.AgentMarketData, agentresult.StatusProcessing, `{}`))
	require.NoError(t, err)
	assert.True(t, applied)

	// Same key, still PROCESSING: the write replaces the row
	applied, err = repo.Upsert(ctx, newResult(b.ID, agentresult.AgentMarketData, agentresult.StatusFinished, `{"bars":250}`))
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := repo.Get(ctx, b.ID, agentresult.AgentMarketData)
	require.NoError(t, err)
	assert.Equal(t, agentresult.StatusFinished, got.Status)
	assert.JSONEq(t, `{"bars":250}`, string(got.Payload))
}

func TestAgentResultRepository_UpsertRejectedAfterTerminal(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	repo := NewAgentResultRepository(testDB.Tx())
	ctx := context.Background()

	b := newTestBatch(t, testDB.Tx(), "AAPL")

	applied, err := repo.Upsert(ctx, newResult(b.ID, agentresult.AgentPatent, agentresult.StatusFailed, `{}`))
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = repo.Upsert(ctx, newResult(b.ID, agentresult.AgentPatent, agentresult.StatusFinished, `{"patent_count":1}`))
	require.NoError(t, err)
	assert.False(t, applied)

	// The terminal row survived untouched
	got, err := repo.Get(ctx, b.ID, agentresult.AgentPatent)
	require.NoError(t, err)
	assert.Equal(t, agentresult.StatusFailed, got.Status)
}

func TestAgentResultRepository_OverwriteIsUnconditional(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	repo := NewAgentResultRepository(testDB.Tx())
	ctx := context.Background()

	b := newTestBatch(t, testDB.Tx(), "AAPL")

	applied, err := repo.Upsert(ctx, newResult(b.ID, agentresult.AgentBacktest, agentresult.StatusFailed, `{}`))
	require.NoError(t, err)
	require.True(t, applied)

	require.NoError(t, repo.Overwrite(ctx, newResult(b.ID, agentresult.AgentBacktest, agentresult.StatusFinished, `{"sharpe":"1.2"}`)))

	got, err := repo.Get(ctx, b.ID, agentresult.AgentBacktest)
	require.NoError(t, err)
	assert.Equal(t, agentresult.StatusFinished, got.Status)
}

func TestAgentResultRepository_UpsertUnknownBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	repo := NewAgentResultRepository(testDB.Tx())

	_, err := repo.Upsert(context.Background(), newResult(uuid.New(), agentresult.AgentPatent, agentresult.StatusFinished, `{}`))
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestAgentResultRepository_GetByBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	repo := NewAgentResultRepository(testDB.Tx())
	ctx := context.Background()

	b := newTestBatch(t, testDB.Tx(), "AAPL")

	for _, agentType := range []agentresult.AgentType{agentresult.AgentMarketData, agentresult.AgentPatent} {
		applied, err := repo.Upsert(ctx, newResult(b.ID, agentType, agentresult.StatusFinished, `{}`))
		require.NoError(t, err)
		require.True(t, applied)
	}

	results, err := repo.GetByBatch(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
