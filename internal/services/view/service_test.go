package view

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minerva/internal/domain/batch"
	"minerva/internal/domain/view"
	"minerva/pkg/errors"
)

var errCacheMiss = errors.New("cache miss")

type fakeViewRepo struct {
	mu    sync.Mutex
	views map[uuid.UUID]*view.BatchView
	reads int
}

func newFakeViewRepo() *fakeViewRepo {
	return &fakeViewRepo{views: make(map[uuid.UUID]*view.BatchView)}
}

func (f *fakeViewRepo) GetByBatch(_ context.Context, batchID uuid.UUID) (*view.BatchView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	v, ok := f.views[batchID]
	if !ok {
		return nil, errors.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (f *fakeViewRepo) List(_ context.Context, limit int) ([]*view.BatchView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*view.BatchView, 0, len(f.views))
	for _, v := range f.views {
		cp := *v
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (f *fakeCache) Get(_ context.Context, key string, dest interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.entries[key]
	if !ok {
		return errCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.entries[key] = data
	f.sets++
	return nil
}

func isMiss(err error) bool {
	return errors.Is(err, errCacheMiss)
}

func sampleView(status batch.Status) *view.BatchView {
	return &view.BatchView{
		BatchID:   uuid.New(),
		Ticker:    "AAPL",
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
}

func TestGetBatchView_NullSiblingsPassThrough(t *testing.T) {
	repo := newFakeViewRepo()
	svc := NewService(repo, nil, nil, 0)

	v := sampleView(batch.StatusProcessing)
	repo.views[v.BatchID] = v

	got, err := svc.GetBatchView(context.Background(), v.BatchID)
	require.NoError(t, err)

	// In-flight batch: every sibling is legitimately absent
	assert.Nil(t, got.InsightSummary)
	assert.Nil(t, got.Alpha)
	assert.Nil(t, got.SharpeRatio)
	assert.Nil(t, got.AIAnalysis)
	assert.Nil(t, got.PatentCount)
	assert.Nil(t, got.CompletedAt)
}

func TestGetBatchView_TerminalIsCached(t *testing.T) {
	repo := newFakeViewRepo()
	cache := newFakeCache()
	svc := NewService(repo, cache, isMiss, 10*time.Minute)
	ctx := context.Background()

	v := sampleView(batch.StatusCompleted)
	repo.views[v.BatchID] = v

	_, err := svc.GetBatchView(ctx, v.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, 1, repo.reads)

	// Second read is served from cache
	got, err := svc.GetBatchView(ctx, v.BatchID)
	require.NoError(t, err)
	assert.Equal(t, v.BatchID, got.BatchID)
	assert.Equal(t, 1, repo.reads)
}

func TestGetBatchView_InFlightIsNotCached(t *testing.T) {
	repo := newFakeViewRepo()
	cache := newFakeCache()
	svc := NewService(repo, cache, isMiss, 10*time.Minute)
	ctx := context.Background()

	v := sampleView(batch.StatusProcessing)
	repo.views[v.BatchID] = v

	_, err := svc.GetBatchView(ctx, v.BatchID)
	require.NoError(t, err)
	_, err = svc.GetBatchView(ctx, v.BatchID)
	require.NoError(t, err)

	assert.Equal(t, 0, cache.sets)
	assert.Equal(t, 2, repo.reads)
}

func TestGetBatchView_UnknownBatch(t *testing.T) {
	svc := NewService(newFakeViewRepo(), nil, nil, 0)

	_, err := svc.GetBatchView(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestList_DefaultLimit(t *testing.T) {
	repo := newFakeViewRepo()
	v := sampleView(batch.StatusPending)
	repo.views[v.BatchID] = v
	svc := NewService(repo, nil, nil, 0)

	views, err := svc.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, views, 1)
}
