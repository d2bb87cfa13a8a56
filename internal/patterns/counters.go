package patterns

import "sync"

// counterEntry tracks a single pattern's observed effectiveness.
type counterEntry struct {
	matchCount         int64
	falsePositiveCount int64
}

// CounterTable is the async, best-effort home for per-pattern
// match/false-positive counters. Updates are applied off the hot path
// so a reload or a slow writer never stalls a scan.
type CounterTable struct {
	mu      sync.Mutex
	entries map[string]*counterEntry
	updates chan counterUpdate
	done    chan struct{}
}

type counterUpdate struct {
	patternID     string
	falsePositive bool
}

// NewCounterTable starts the background applier goroutine.
func NewCounterTable() *CounterTable {
	t := &CounterTable{
		entries: make(map[string]*counterEntry),
		updates: make(chan counterUpdate, 1024),
		done:    make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *CounterTable) run() {
	for {
		select {
		case u := <-t.updates:
			t.apply(u)
		case <-t.done:
			return
		}
	}
}

func (t *CounterTable) apply(u counterUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[u.patternID]
	if !ok {
		e = &counterEntry{}
		t.entries[u.patternID] = e
	}
	e.matchCount++
	if u.falsePositive {
		e.falsePositiveCount++
	}
}

// RecordMatch enqueues a match observation. Non-blocking: if the
// update channel is full the observation is dropped rather than
// stalling the caller.
func (t *CounterTable) RecordMatch(patternID string) {
	select {
	case t.updates <- counterUpdate{patternID: patternID}:
	default:
	}
}

// RecordFalsePositive enqueues a false-positive observation.
func (t *CounterTable) RecordFalsePositive(patternID string) {
	select {
	case t.updates <- counterUpdate{patternID: patternID, falsePositive: true}:
	default:
	}
}

// Rate returns the current false-positive rate for a pattern,
// fp_count / max(1, match_count).
func (t *CounterTable) Rate(patternID string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[patternID]
	if !ok || e.matchCount == 0 {
		return 0
	}
	denom := e.matchCount
	if denom < 1 {
		denom = 1
	}
	return float64(e.falsePositiveCount) / float64(denom)
}

// Stop terminates the background applier. Safe to call once.
func (t *CounterTable) Stop() {
	close(t.done)
}
