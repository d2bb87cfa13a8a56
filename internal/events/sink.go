// Package events implements the scan-event analytics sink (spec §6):
// every completed scan is fire-and-forget reported to zero or more
// collaborators — a batched Postgres writer, a websocket broadcaster
// for a live dashboard, or both. The scan pipeline never blocks on
// delivery and never treats a sink failure as a scan failure.
package events

import (
	"github.com/rawblock/txscan-engine/internal/model"
)

// ScanEventSink is the outbound contract named in spec §6. Emit must
// not block the caller for long; implementations that talk to a
// network backend should queue and return.
type ScanEventSink interface {
	Emit(event model.ScanEvent)
}

// MultiSink fans a single event out to every configured sink.
type MultiSink struct {
	sinks []ScanEventSink
}

// NewMultiSink builds a MultiSink from any number of sinks (nil
// entries are skipped).
func NewMultiSink(sinks ...ScanEventSink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Emit forwards event to every wired sink.
func (m *MultiSink) Emit(event model.ScanEvent) {
	for _, s := range m.sinks {
		s.Emit(event)
	}
}

var _ ScanEventSink = (*MultiSink)(nil)

// noopSink discards every event; used when no sink is configured so
// callers never need a nil check.
type noopSink struct{}

func (noopSink) Emit(model.ScanEvent) {}

// Noop returns a ScanEventSink that discards everything.
func Noop() ScanEventSink { return noopSink{} }
