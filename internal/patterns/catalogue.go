// Package patterns implements the exploit-pattern matching engine: a
// concurrent-safe catalogue bucketed by pattern kind, four sub-matchers
// run in parallel under per-matcher deadlines, and the dedup/sort/cap
// pipeline that turns their output into a transaction's final match
// list.
//
// The catalogue is shared-immutable under a versioned pointer. Readers
// always see a consistent snapshot; ReloadPatterns atomically swaps in
// a freshly built one off the hot path.
package patterns

import (
	"log"
	"regexp"
	"sync/atomic"

	"github.com/rawblock/txscan-engine/internal/model"
)

// compiledRegexPattern pairs a catalogue entry with its precompiled
// instruction-data regex.
type compiledRegexPattern struct {
	pattern *model.ExploitPattern
	re      *regexp.Regexp
}

// snapshot is one immutable, fully indexed view of the catalogue.
type snapshot struct {
	byProgramCritical map[string][]*model.ExploitPattern
	byProgram         map[string][]*model.ExploitPattern
	regexPatterns     []compiledRegexPattern
	behavioral        []*model.ExploitPattern
	accountPatterns   []*model.ExploitPattern
	version           int64
}

// Catalogue holds the current snapshot behind an atomic pointer so
// readers never block on a reload and a reload never blocks a reader.
type Catalogue struct {
	current atomic.Pointer[snapshot]
	counter *CounterTable
}

// NewCatalogue builds a Catalogue from an initial pattern set.
func NewCatalogue(initial []model.ExploitPattern) *Catalogue {
	c := &Catalogue{counter: NewCounterTable()}
	c.current.Store(buildSnapshot(initial, 0))
	return c
}

// ReloadPatterns builds a fresh index off-thread and swaps it in
// atomically; scans in flight continue reading the old snapshot until
// their own next lookup.
func (c *Catalogue) ReloadPatterns(patterns []model.ExploitPattern) {
	prev := c.current.Load()
	next := buildSnapshot(patterns, prev.version+1)
	c.current.Store(next)
}

// Version reports the currently active snapshot's generation number,
// mostly useful for tests and diagnostics.
func (c *Catalogue) Version() int64 {
	return c.current.Load().version
}

// Counters exposes the async effectiveness-counter table so the engine
// can record hits without holding the catalogue.
func (c *Catalogue) Counters() *CounterTable {
	return c.counter
}

func buildSnapshot(patterns []model.ExploitPattern, version int64) *snapshot {
	s := &snapshot{
		byProgramCritical: make(map[string][]*model.ExploitPattern),
		byProgram:         make(map[string][]*model.ExploitPattern),
		version:           version,
	}

	for i := range patterns {
		p := &patterns[i]
		if !p.IsActive {
			continue
		}
		switch p.Kind {
		case model.PatternCriticalProgram:
			s.byProgramCritical[p.ProgramID] = append(s.byProgramCritical[p.ProgramID], p)
		case model.PatternProgram:
			s.byProgram[p.ProgramID] = append(s.byProgram[p.ProgramID], p)
		case model.PatternInstructionRx:
			re, err := regexp.Compile(p.InstructionRegex)
			if err != nil {
				log.Printf("patterns: disqualifying %s, bad regex: %v", p.PatternID, err)
				continue
			}
			s.regexPatterns = append(s.regexPatterns, compiledRegexPattern{pattern: p, re: re})
		case model.PatternBehavioral:
			s.behavioral = append(s.behavioral, p)
		case model.PatternAccount:
			s.accountPatterns = append(s.accountPatterns, p)
		default:
			log.Printf("patterns: disqualifying %s, unknown kind %q", p.PatternID, p.Kind)
		}
	}

	return s
}
