package workers

import (
	"context"
	"sync"
	"time"

	"minerva/internal/metrics"
	"minerva/pkg/errors"
	"minerva/pkg/logger"
)

// stopGrace bounds how long Stop waits for in-flight iterations
const stopGrace = 30 * time.Second

// Scheduler runs registered workers on their intervals until stopped. Each
// enabled worker gets its own goroutine; a panicking iteration is contained
// and does not take the scheduler down.
type Scheduler struct {
	mu      sync.RWMutex
	workers []Worker
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	log     *logger.Logger
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		log: logger.Get().With("component", "scheduler"),
	}
}

// RegisterWorker adds a worker. Registration closes once Start is called.
func (s *Scheduler) RegisterWorker(w Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.log.Warnw("Cannot register worker after scheduler has started", "worker", w.Name())
		return
	}

	s.workers = append(s.workers, w)
	s.log.Infow("Worker registered", "worker", w.Name(), "interval", w.Interval())
}

// Start launches one loop per enabled worker. Each worker runs immediately
// once, then on its ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.Wrap(errors.ErrInternal, "scheduler already started")
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	enabled := 0
	for _, w := range s.workers {
		if w.Enabled() {
			enabled++
		}
	}
	s.mu.Unlock()

	s.log.Infow("Starting worker scheduler",
		"registered", len(s.workers), "enabled", enabled)

	for _, w := range s.workers {
		if !w.Enabled() {
			s.log.Infow("Skipping disabled worker", "worker", w.Name())
			continue
		}
		s.wg.Add(1)
		go s.loop(w)
	}

	return nil
}

// Stop cancels all worker loops and waits up to the grace period for
// in-flight iterations to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return errors.Wrap(errors.ErrInternal, "scheduler not started")
	}
	s.cancel()
	s.mu.Unlock()

	s.log.Info("Stopping worker scheduler...")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		s.log.Info("All workers stopped")
	case <-time.After(stopGrace):
		s.log.Warnw("Worker shutdown timed out", "grace", stopGrace)
		err = errors.Wrap(errors.ErrInternal, "worker shutdown timeout")
	}

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()

	return err
}

func (s *Scheduler) loop(w Worker) {
	defer s.wg.Done()

	s.log.Infow("Worker started", "worker", w.Name())

	ticker := time.NewTicker(w.Interval())
	defer ticker.Stop()

	s.runOnce(w)

	for {
		select {
		case <-s.ctx.Done():
			s.log.Infow("Worker stopping", "worker", w.Name())
			return
		case <-ticker.C:
			s.runOnce(w)
		}
	}
}

// runOnce executes a single iteration, containing panics and recording the
// outcome in metrics.
func (s *Scheduler) runOnce(w Worker) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("Worker panicked", "worker", w.Name(), "panic", r)
		}
	}()

	err := w.Run(s.ctx)
	metrics.RecordWorkerExecution(w.Name(), time.Since(start), err)

	if err != nil {
		s.log.Errorw("Worker iteration failed",
			"worker", w.Name(), "error", err, "duration", time.Since(start))
		return
	}
	s.log.Debugw("Worker iteration completed",
		"worker", w.Name(), "duration", time.Since(start))
}

// GetWorkers returns the registered workers in registration order
func (s *Scheduler) GetWorkers() []Worker {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Worker, len(s.workers))
	copy(out, s.workers)
	return out
}

// IsRunning reports whether Start has been called without a matching Stop
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
