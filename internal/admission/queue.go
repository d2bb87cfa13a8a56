// Package admission implements the scan pipeline's front door: a
// bounded priority queue, a fixed worker pool behind a concurrency
// ceiling, and a circuit breaker independent of the cache tier's —
// priority queue + concurrency limiter + circuit breaker, in one.
//
// Priority order: CRITICAL > HIGH > NORMAL > LOW, FIFO within a level.
package admission

import (
	"container/heap"
	"sync"

	"github.com/rawblock/txscan-engine/internal/model"
)

// priorityQueue is a container/heap implementation ordered by
// (priority desc, seq asc) so requests at the same priority stay FIFO.
type priorityQueue []*model.QueuedRequest

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].Priority != pq[j].Priority {
		return pq[i].Priority > pq[j].Priority
	}
	return pq[i].Seq() < pq[j].Seq()
}

func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

func (pq *priorityQueue) Push(x any) {
	*pq = append(*pq, x.(*model.QueuedRequest))
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}

// boundedQueue wraps priorityQueue with a max size and a monotonic
// sequence counter, safe for concurrent use.
type boundedQueue struct {
	mu       sync.Mutex
	pq       priorityQueue
	maxSize  int
	nextSeq  uint64
}

func newBoundedQueue(maxSize int) *boundedQueue {
	q := &boundedQueue{maxSize: maxSize}
	heap.Init(&q.pq)
	return q
}

// tryPush pushes req if the queue has room, returning false if full.
func (q *boundedQueue) tryPush(req *model.QueuedRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pq) >= q.maxSize {
		return false
	}
	req.SetSeq(q.nextSeq)
	q.nextSeq++
	heap.Push(&q.pq, req)
	return true
}

// pop removes and returns the highest-priority, earliest-enqueued
// request, or nil if the queue is empty.
func (q *boundedQueue) pop() *model.QueuedRequest {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pq) == 0 {
		return nil
	}
	return heap.Pop(&q.pq).(*model.QueuedRequest)
}

func (q *boundedQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pq)
}
