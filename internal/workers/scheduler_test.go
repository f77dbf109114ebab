package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWorker struct {
	*BaseWorker
	runCount int32
	runFunc  func(ctx context.Context) error
}

func newStubWorker(name string, interval time.Duration, enabled bool) *stubWorker {
	return &stubWorker{
		BaseWorker: NewBaseWorker(name, interval, enabled),
	}
}

func (w *stubWorker) Run(ctx context.Context) error {
	atomic.AddInt32(&w.runCount, 1)
	if w.runFunc != nil {
		return w.runFunc(ctx)
	}
	return nil
}

func (w *stubWorker) Runs() int {
	return int(atomic.LoadInt32(&w.runCount))
}

func TestScheduler_StartStop(t *testing.T) {
	scheduler := NewScheduler()

	worker := newStubWorker("sweep", 100*time.Millisecond, true)
	scheduler.RegisterWorker(worker)

	require.NoError(t, scheduler.Start(context.Background()))
	assert.True(t, scheduler.IsRunning())

	time.Sleep(250 * time.Millisecond)

	require.NoError(t, scheduler.Stop())
	assert.False(t, scheduler.IsRunning())

	// Immediate run plus at least one tick
	assert.GreaterOrEqual(t, worker.Runs(), 2)
}

func TestScheduler_DisabledWorkerNeverRuns(t *testing.T) {
	scheduler := NewScheduler()

	enabled := newStubWorker("enabled", 100*time.Millisecond, true)
	disabled := newStubWorker("disabled", 100*time.Millisecond, false)

	scheduler.RegisterWorker(enabled)
	scheduler.RegisterWorker(disabled)

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(250 * time.Millisecond)
	require.NoError(t, scheduler.Stop())

	assert.Greater(t, enabled.Runs(), 0)
	assert.Equal(t, 0, disabled.Runs())
}

func TestScheduler_ContextCancellationStopsWorkers(t *testing.T) {
	scheduler := NewScheduler()
	worker := newStubWorker("sweep", 50*time.Millisecond, true)
	scheduler.RegisterWorker(worker)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, scheduler.Start(ctx))

	cancel()
	time.Sleep(150 * time.Millisecond)

	// Stop still works after the context already ended the workers
	require.NoError(t, scheduler.Stop())
}

func TestScheduler_PanickingWorkerDoesNotKillScheduler(t *testing.T) {
	scheduler := NewScheduler()

	panicky := newStubWorker("panicky", 50*time.Millisecond, true)
	panicky.runFunc = func(ctx context.Context) error {
		panic("boom")
	}
	steady := newStubWorker("steady", 50*time.Millisecond, true)

	scheduler.RegisterWorker(panicky)
	scheduler.RegisterWorker(steady)

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, scheduler.Stop())

	assert.Greater(t, steady.Runs(), 1)
	assert.Greater(t, panicky.Runs(), 1)
}

func TestScheduler_CannotStartTwice(t *testing.T) {
	scheduler := NewScheduler()
	scheduler.RegisterWorker(newStubWorker("sweep", 100*time.Millisecond, true))

	require.NoError(t, scheduler.Start(context.Background()))
	assert.Error(t, scheduler.Start(context.Background()))

	_ = scheduler.Stop()
}

func TestScheduler_GetWorkers(t *testing.T) {
	scheduler := NewScheduler()

	scheduler.RegisterWorker(newStubWorker("sweeper", 100*time.Millisecond, true))
	scheduler.RegisterWorker(newStubWorker("reaper", 200*time.Millisecond, false))

	workers := scheduler.GetWorkers()
	require.Len(t, workers, 2)
	assert.Equal(t, "sweeper", workers[0].Name())
	assert.Equal(t, "reaper", workers[1].Name())
}

func TestBaseWorker_HealthTracking(t *testing.T) {
	w := NewBaseWorker("sweep", time.Minute, true)

	w.RecordRun(100 * time.Millisecond)
	w.RecordError(assert.AnError, 300*time.Millisecond)

	h := w.Health()
	assert.Equal(t, int64(2), h.RunCount)
	assert.Equal(t, int64(1), h.ErrorCount)
	assert.Equal(t, assert.AnError, h.LastError)
	assert.Equal(t, 200*time.Millisecond, h.AvgDuration)
	assert.True(t, h.Enabled)
}
