package workers

import (
	"context"
	"sync"
	"time"

	"minerva/pkg/logger"
)

// Worker is one periodic background task. Run is invoked once per interval
// by the scheduler; implementations must be safe to re-run after an error.
type Worker interface {
	Name() string
	Run(ctx context.Context) error
	Interval() time.Duration
	Enabled() bool
}

// WorkerHealth is a snapshot of a worker's run history
type WorkerHealth struct {
	LastRun           time.Time
	LastError         error
	RunCount          int64
	ErrorCount        int64
	ConsecutiveErrors int64
	AvgDuration       time.Duration
	Enabled           bool
}

// BaseWorker carries the bookkeeping every worker shares: identity, interval
// and run statistics. Concrete workers embed it and implement Run.
type BaseWorker struct {
	name     string
	interval time.Duration
	enabled  bool
	log      *logger.Logger

	mu    sync.RWMutex
	stats runStats
}

type runStats struct {
	lastRun           time.Time
	lastError         error
	runs              int64
	failures          int64
	consecutiveErrors int64
	totalDuration     time.Duration
}

func NewBaseWorker(name string, interval time.Duration, enabled bool) *BaseWorker {
	return &BaseWorker{
		name:     name,
		interval: interval,
		enabled:  enabled,
		log:      logger.Get().With("worker", name),
	}
}

func (w *BaseWorker) Name() string            { return w.name }
func (w *BaseWorker) Interval() time.Duration { return w.interval }
func (w *BaseWorker) Enabled() bool           { return w.enabled }

// Log returns the worker-scoped logger
func (w *BaseWorker) Log() *logger.Logger {
	return w.log
}

// RecordRun accounts a successful iteration
func (w *BaseWorker) RecordRun(duration time.Duration) {
	w.record(nil, duration)
}

// RecordError accounts a failed iteration
func (w *BaseWorker) RecordError(err error, duration time.Duration) {
	w.record(err, duration)
}

func (w *BaseWorker) record(err error, duration time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stats.lastRun = time.Now()
	w.stats.runs++
	w.stats.totalDuration += duration
	w.stats.lastError = err

	if err != nil {
		w.stats.failures++
		w.stats.consecutiveErrors++
	} else {
		w.stats.consecutiveErrors = 0
	}
}

// Health reports the worker's run history
func (w *BaseWorker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var avg time.Duration
	if w.stats.runs > 0 {
		avg = w.stats.totalDuration / time.Duration(w.stats.runs)
	}

	return WorkerHealth{
		LastRun:           w.stats.lastRun,
		LastError:         w.stats.lastError,
		RunCount:          w.stats.runs,
		ErrorCount:        w.stats.failures,
		ConsecutiveErrors: w.stats.consecutiveErrors,
		AvgDuration:       avg,
		Enabled:           w.enabled,
	}
}
