package admission

import (
	"errors"
	"testing"
	"time"

	"github.com/rawblock/txscan-engine/internal/model"
	"github.com/rawblock/txscan-engine/internal/scanerrors"
)

func newTestAdmitter(maxQueue, workers, concurrency int) *Admitter {
	return New(Config{
		MaxQueueSize:      maxQueue,
		WorkerCount:       workers,
		ConcurrencyLimit:  concurrency,
		BreakerThreshold:  10,
		BreakerResetAfter: time.Minute,
	})
}

func TestAdmitter_SubmitAndComplete(t *testing.T) {
	a := newTestAdmitter(10, 2, 2)
	defer a.Stop()

	done := make(chan struct{})
	req := &model.QueuedRequest{
		RequestID: "r1",
		Priority:  model.PriorityNormal,
		EnqueuedAt: time.Now(),
		Deadline:   time.Now().Add(time.Second),
		Handler: func() (any, error) {
			close(done)
			return "ok", nil
		},
	}

	if err := a.Submit(req); err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}

	time.Sleep(10 * time.Millisecond)
	stats := a.Stats()
	if stats.Completed != 1 {
		t.Errorf("expected 1 completed, got %d", stats.Completed)
	}
}

func TestAdmitter_QueueFullRejectsImmediately(t *testing.T) {
	a := newTestAdmitter(1, 0, 1) // zero workers: nothing drains the queue
	defer a.Stop()

	block := make(chan struct{})
	req1 := &model.QueuedRequest{
		Priority: model.PriorityNormal, EnqueuedAt: time.Now(), Deadline: time.Now().Add(time.Second),
		Handler: func() (any, error) { <-block; return nil, nil },
	}
	if err := a.Submit(req1); err != nil {
		t.Fatalf("unexpected error on first submit: %v", err)
	}

	req2 := &model.QueuedRequest{Priority: model.PriorityNormal, EnqueuedAt: time.Now(), Deadline: time.Now().Add(time.Second)}
	err := a.Submit(req2)
	if !errors.Is(err, scanerrors.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull when queue at capacity, got %v", err)
	}
	close(block)
}

func TestAdmitter_TimeoutRetriesUpToMaxAttempts(t *testing.T) {
	a := newTestAdmitter(10, 2, 2)
	defer a.Stop()

	var calls int32
	req := &model.QueuedRequest{
		Priority:    model.PriorityNormal,
		EnqueuedAt:  time.Now(),
		Deadline:    time.Now().Add(20 * time.Millisecond),
		MaxAttempts: 2,
		Handler: func() (any, error) {
			calls++
			time.Sleep(100 * time.Millisecond) // always exceeds the deadline
			return nil, nil
		},
	}

	if err := a.Submit(req); err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}

	time.Sleep(300 * time.Millisecond)
	stats := a.Stats()
	if stats.Timeouts == 0 {
		t.Error("expected at least one recorded timeout")
	}
	if stats.Retries != int64(req.MaxAttempts) {
		t.Errorf("expected %d retries, got %d", req.MaxAttempts, stats.Retries)
	}
}

func TestPriorityQueue_OrdersCriticalFirstThenFIFO(t *testing.T) {
	q := newBoundedQueue(10)

	low := &model.QueuedRequest{Priority: model.PriorityLow}
	critical := &model.QueuedRequest{Priority: model.PriorityCritical}
	normalFirst := &model.QueuedRequest{Priority: model.PriorityNormal}
	normalSecond := &model.QueuedRequest{Priority: model.PriorityNormal}

	q.tryPush(low)
	q.tryPush(normalFirst)
	q.tryPush(critical)
	q.tryPush(normalSecond)

	if got := q.pop(); got != critical {
		t.Error("expected CRITICAL to pop first")
	}
	if got := q.pop(); got != normalFirst {
		t.Error("expected the first-enqueued NORMAL to pop before the second")
	}
	if got := q.pop(); got != normalSecond {
		t.Error("expected the second NORMAL next")
	}
	if got := q.pop(); got != low {
		t.Error("expected LOW last")
	}
}
