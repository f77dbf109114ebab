package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minerva/internal/domain/batch"
	"minerva/internal/testsupport"
	"minerva/pkg/errors"
)

func newTestBatch(t *testing.T, db sqlx.ExtContext, ticker string) *batch.Batch {
	t.Helper()

	now := time.Now().UTC()
	b := &batch.Batch{
		ID:        uuid.New(),
		Ticker:    ticker,
		Status:    batch.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, NewBatchRepository(db).Create(context.Background(), b))
	return b
}

func TestBatchRepository_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	repo := NewBatchRepository(testDB.Tx())
	ctx := context.Background()

	b := newTestBatch(t, testDB.Tx(), "AAPL")

	got, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, "AAPL", got.Ticker)
	assert.Equal(t, batch.StatusPending, got.Status)
	assert.Nil(t, got.CompletedAt)
	assert.Nil(t, got.ErrorLog)
}

func TestBatchRepository_GetByID_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	repo := NewBatchRepository(testDB.Tx())

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestBatchRepository_UpdateStatus_Guarded(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	repo := NewBatchRepository(testDB.Tx())
	ctx := context.Background()

	b := newTestBatch(t, testDB.Tx(), "AAPL")

	// PENDING → COMPLETED must not apply: the guard only allows PROCESSING
	applied, err := repo.UpdateStatus(ctx, b.ID, batch.StatusCompleted, batch.StatusProcessing)
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = repo.UpdateStatus(ctx, b.ID, batch.StatusProcessing, batch.StatusPending, batch.StatusProcessing)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.UpdateStatus(ctx, b.ID, batch.StatusCompleted, batch.StatusProcessing)
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	// Terminal: nothing applies anymore
	applied, err = repo.UpdateStatus(ctx, b.ID, batch.StatusProcessing, batch.StatusPending, batch.StatusProcessing)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestBatchRepository_MarkFailed_AppendsLog(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	repo := NewBatchRepository(testDB.Tx())
	ctx := context.Background()

	b := newTestBatch(t, testDB.Tx(), "AAPL")

	require.NoError(t, repo.AppendError(ctx, b.ID, "patent agent: timeout"))

	applied, err := repo.MarkFailed(ctx, b.ID, "backtest agent: no data")
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorLog)
	assert.Contains(t, *got.ErrorLog, "patent agent: timeout")
	assert.Contains(t, *got.ErrorLog, "backtest agent: no data")
	require.NotNil(t, got.CompletedAt)

	// Already terminal
	applied, err = repo.MarkFailed(ctx, b.ID, "again")
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestBatchRepository_ListNonTerminal(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	repo := NewBatchRepository(testDB.Tx())
	ctx := context.Background()

	pending := newTestBatch(t, testDB.Tx(), "AAPL")
	done := newTestBatch(t, testDB.Tx(), "MSFT")

	_, err := repo.UpdateStatus(ctx, done.ID, batch.StatusProcessing, batch.StatusPending)
	require.NoError(t, err)
	_, err = repo.UpdateStatus(ctx, done.ID, batch.StatusCompleted, batch.StatusProcessing)
	require.NoError(t, err)

	batches, err := repo.ListNonTerminal(ctx, time.Now().UTC().Add(time.Minute), 100)
	require.NoError(t, err)

	ids := make(map[uuid.UUID]bool, len(batches))
	for _, b := range batches {
		ids[b.ID] = true
	}
	assert.True(t, ids[pending.ID])
	assert.False(t, ids[done.ID])
}
