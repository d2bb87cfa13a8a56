package model

import "time"

// QueuedRequest is one admission-layer work item. Handler is opaque
// to the queue; the worker pool only invokes Handler().
type QueuedRequest struct {
	RequestID   string
	Priority    Priority
	EnqueuedAt  time.Time
	Deadline    time.Time
	Attempts    int
	MaxAttempts int
	Handler     func() (any, error)

	// seq breaks ties between requests at the same priority so the
	// queue stays FIFO within a level; set by the queue on push.
	seq uint64
}

// SetSeq and Seq give the admission package access to the tiebreaker
// without exporting a mutable field callers could corrupt.
func (q *QueuedRequest) SetSeq(n uint64) { q.seq = n }
func (q *QueuedRequest) Seq() uint64     { return q.seq }
