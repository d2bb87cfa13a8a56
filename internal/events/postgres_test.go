package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rawblock/txscan-engine/internal/model"
)

type fakeTx struct {
	mu        sync.Mutex
	execCount int
	committed bool
	rolledBack bool
	failOnExec bool
}

func (f *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOnExec {
		return pgconn.CommandTag{}, errors.New("exec failed")
	}
	f.execCount++
	return pgconn.CommandTag{}, nil
}

func (f *fakeTx) Commit(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rolledBack = true
	return nil
}

type fakeBeginner struct {
	tx      *fakeTx
	failure error
}

func (f *fakeBeginner) Begin(ctx context.Context) (txExecutor, error) {
	if f.failure != nil {
		return nil, f.failure
	}
	return f.tx, nil
}

func TestPostgresSink_FlushesOnBatchSize(t *testing.T) {
	tx := &fakeTx{}
	sink := newPostgresSinkWithBeginner(&fakeBeginner{tx: tx}, 2, time.Hour)
	defer sink.Close()

	sink.Emit(model.ScanEvent{ScanID: "a"})
	sink.Emit(model.ScanEvent{ScanID: "b"})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		tx.mu.Lock()
		done := tx.committed
		tx.mu.Unlock()
		if done {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.execCount != 2 {
		t.Errorf("expected 2 inserts, got %d", tx.execCount)
	}
	if !tx.committed {
		t.Error("expected the batch to be committed")
	}
}

func TestPostgresSink_FlushesOnTicker(t *testing.T) {
	tx := &fakeTx{}
	sink := newPostgresSinkWithBeginner(&fakeBeginner{tx: tx}, 100, 20*time.Millisecond)
	defer sink.Close()

	sink.Emit(model.ScanEvent{ScanID: "only-one"})

	time.Sleep(100 * time.Millisecond)

	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.execCount != 1 {
		t.Errorf("expected the ticker to flush the single pending event, got %d inserts", tx.execCount)
	}
}

func TestPostgresSink_BeginFailureDropsBatchWithoutPanicking(t *testing.T) {
	sink := newPostgresSinkWithBeginner(&fakeBeginner{failure: errors.New("connection refused")}, 1, time.Hour)
	defer sink.Close()

	sink.Emit(model.ScanEvent{ScanID: "a"})
	time.Sleep(50 * time.Millisecond) // best-effort: just confirm no panic/deadlock
}

func TestPostgresSink_EmitNeverBlocksWhenQueueFull(t *testing.T) {
	sink := newPostgresSinkWithBeginner(&fakeBeginner{tx: &fakeTx{}}, 1, time.Hour)
	defer sink.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < queueCapacity+10; i++ {
			sink.Emit(model.ScanEvent{ScanID: "spam"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked instead of dropping excess events")
	}
}

func TestMultiSink_FansOutToEverySink(t *testing.T) {
	a := newFakeCountSink()
	b := newFakeCountSink()
	m := NewMultiSink(a, b, nil)

	m.Emit(model.ScanEvent{ScanID: "x"})

	if a.count() != 1 || b.count() != 1 {
		t.Errorf("expected both sinks to receive the event, got a=%d b=%d", a.count(), b.count())
	}
}

type fakeCountSink struct {
	mu sync.Mutex
	n  int
}

func newFakeCountSink() *fakeCountSink { return &fakeCountSink{} }

func (f *fakeCountSink) Emit(model.ScanEvent) {
	f.mu.Lock()
	f.n++
	f.mu.Unlock()
}

func (f *fakeCountSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

func buildTestEvent(scanID string) model.ScanEvent {
	return model.ScanEvent{ScanID: scanID, RiskLevel: model.RiskSafe}
}
