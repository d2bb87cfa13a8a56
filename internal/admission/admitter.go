package admission

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"github.com/rawblock/txscan-engine/internal/model"
	"github.com/rawblock/txscan-engine/internal/scanerrors"
)

// Config tunes the admission layer's queue, worker pool, and breaker.
type Config struct {
	MaxQueueSize      int
	WorkerCount       int
	ConcurrencyLimit  int
	BreakerThreshold  uint32
	BreakerResetAfter time.Duration
}

// Admitter is the priority queue + concurrency limiter + circuit
// breaker described in spec §4.9.
type Admitter struct {
	queue   *boundedQueue
	sem     chan struct{}
	breaker *gobreaker.CircuitBreaker
	cfg     Config

	waitTimes    *sampleWindow
	processTimes *sampleWindow

	total, completed, failed, timeouts, retries atomic.Int64

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New builds an Admitter and starts its worker pool.
func New(cfg Config) *Admitter {
	a := &Admitter{
		queue:        newBoundedQueue(cfg.MaxQueueSize),
		sem:          make(chan struct{}, cfg.ConcurrencyLimit),
		waitTimes:    newSampleWindow(),
		processTimes: newSampleWindow(),
		cfg:          cfg,
		stopCh:       make(chan struct{}),
	}
	a.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "admission",
		MaxRequests: 1,
		Timeout:     cfg.BreakerResetAfter,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
	})

	for i := 0; i < cfg.WorkerCount; i++ {
		a.wg.Add(1)
		go a.workerLoop()
	}
	return a
}

// Submit enqueues a request. Rejects immediately with ErrQueueFull if
// the queue is at capacity, or ErrBreakerOpen if the breaker is open.
func (a *Admitter) Submit(req *model.QueuedRequest) error {
	if a.breaker.State() == gobreaker.StateOpen {
		return scanerrors.ErrBreakerOpen
	}
	a.total.Add(1)
	if !a.queue.tryPush(req) {
		a.failed.Add(1)
		return scanerrors.ErrQueueFull
	}
	return nil
}

// Stats returns a snapshot of the admission layer's counters.
func (a *Admitter) Stats() Stats {
	total := a.total.Load()
	completed := a.completed.Load()
	successRate := 0.0
	if total > 0 {
		successRate = float64(completed) / float64(total)
	}
	return Stats{
		Total:            total,
		Completed:        completed,
		Failed:           a.failed.Load(),
		Timeouts:         a.timeouts.Load(),
		Retries:          a.retries.Load(),
		CurrentQueueSize: a.queue.size(),
		MaxQueueSize:     a.cfg.MaxQueueSize,
		SuccessRate:      successRate,
		AvgWaitTimeMs:    a.waitTimes.mean(),
		AvgProcessTimeMs: a.processTimes.mean(),
	}
}

// BreakerState reports the admission breaker's current state as a
// lowercase string, for health/status reporting.
func (a *Admitter) BreakerState() string {
	return a.breaker.State().String()
}

// Stop signals every worker to exit and waits for them to drain.
func (a *Admitter) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
	a.wg.Wait()
}

func (a *Admitter) workerLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			req := a.queue.pop()
			if req == nil {
				continue
			}
			a.process(req)
		}
	}
}

func (a *Admitter) process(req *model.QueuedRequest) {
	a.waitTimes.record(float64(time.Since(req.EnqueuedAt).Milliseconds()))

	select {
	case a.sem <- struct{}{}:
	case <-a.stopCh:
		return
	}
	defer func() { <-a.sem }()

	ctx, cancel := context.WithDeadline(context.Background(), req.Deadline)
	defer cancel()

	start := time.Now()
	_, err := a.breaker.Execute(func() (any, error) {
		return runHandler(ctx, req.Handler)
	})
	a.processTimes.record(float64(time.Since(start).Milliseconds()))

	if err == nil {
		a.completed.Add(1)
		return
	}

	if err == context.DeadlineExceeded {
		a.timeouts.Add(1)
		if req.Attempts < req.MaxAttempts {
			req.Attempts++
			a.retries.Add(1)
			if a.queue.tryPush(req) {
				return
			}
		}
	}
	a.failed.Add(1)
}

// runHandler invokes req's handler, racing it against ctx's deadline so
// a handler that never checks cancellation still does not hang the
// worker forever.
func runHandler(ctx context.Context, handler func() (any, error)) (any, error) {
	result := make(chan struct {
		v   any
		err error
	}, 1)
	go func() {
		v, err := handler()
		result <- struct {
			v   any
			err error
		}{v, err}
	}()

	select {
	case r := <-result:
		return r.v, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
