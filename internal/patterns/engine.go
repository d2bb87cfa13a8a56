package patterns

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rawblock/txscan-engine/internal/model"
	"github.com/rawblock/txscan-engine/internal/parser"
)

// MatchCache is the L1 lookup the engine consults before running its
// sub-matchers. Satisfied by internal/cache.Cache; declared locally so
// this package never imports the cache tier.
type MatchCache interface {
	GetPatternMatches(ctx context.Context, fingerprint string) ([]model.PatternMatch, bool)
	SetPatternMatches(ctx context.Context, fingerprint string, matches []model.PatternMatch)
}

// Deadlines bounds each sub-matcher independently (spec §4.2 step 3).
type Deadlines struct {
	Regex      time.Duration
	Behavioral time.Duration
	Program    time.Duration
	Lookup     time.Duration
}

// DefaultDeadlines mirrors the budgets named in spec §4.2.
func DefaultDeadlines() Deadlines {
	return Deadlines{
		Regex:      30 * time.Millisecond,
		Behavioral: 20 * time.Millisecond,
		Program:    20 * time.Millisecond,
		Lookup:     10 * time.Millisecond,
	}
}

const maxMatches = 20

// Engine ties the catalogue, the metrics derivation, and the L1 cache
// together into the spec's matching algorithm.
type Engine struct {
	catalogue *Catalogue
	cache     MatchCache
	deadlines Deadlines
}

// NewEngine builds an Engine. cache may be nil, in which case the
// engine always runs the sub-matchers fresh.
func NewEngine(catalogue *Catalogue, cache MatchCache, deadlines Deadlines) *Engine {
	return &Engine{catalogue: catalogue, cache: cache, deadlines: deadlines}
}

// Stats reports how a Match call was served, for the orchestrator's
// partial-result bookkeeping.
type Stats struct {
	FromCache bool
	PartialFail bool
}

// Match runs the full pattern-matching algorithm for one transaction:
// cache lookup, metrics derivation, concurrent sub-matchers, then
// dedup/sort/cap.
func (e *Engine) Match(ctx context.Context, tx *model.ParsedTransaction) ([]model.PatternMatch, Stats, error) {
	fp := parser.Fingerprint(tx.Programs, tx.InstructionCount(), tx.AccountCount(), tx.SignaturesRequired)

	if e.cache != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, e.deadlines.Lookup)
		cached, ok := e.cache.GetPatternMatches(lookupCtx, fp)
		cancel()
		if ok {
			return cached, Stats{FromCache: true}, nil
		}
	}

	snap := e.catalogue.current.Load()
	m := deriveMetrics(tx)
	values := m.asMap()

	g, gctx := errgroup.WithContext(ctx)
	var (
		critical, program, regexMatches, behavioral []model.PatternMatch
	)

	g.Go(func() error {
		critical = matchCriticalPrograms(snap, tx.Programs)
		return nil
	})
	g.Go(func() error {
		dctx, cancel := context.WithTimeout(gctx, e.deadlines.Program)
		defer cancel()
		program = runWithDeadline(dctx, func() []model.PatternMatch {
			return matchPrograms(snap, tx.Programs, e.catalogue.Counters())
		})
		return nil
	})
	g.Go(func() error {
		dctx, cancel := context.WithTimeout(gctx, e.deadlines.Regex)
		defer cancel()
		regexMatches = runWithDeadline(dctx, func() []model.PatternMatch {
			return matchInstructionRegex(snap, tx.Instructions)
		})
		return nil
	})
	g.Go(func() error {
		dctx, cancel := context.WithTimeout(gctx, e.deadlines.Behavioral)
		defer cancel()
		behavioral = runWithDeadline(dctx, func() []model.PatternMatch {
			return matchBehavioralAndAccount(snap, values)
		})
		return nil
	})

	_ = g.Wait() // sub-matchers never return an error; only timeouts, absorbed by runWithDeadline

	partial := ctx.Err() != nil
	all := make([]model.PatternMatch, 0, len(critical)+len(program)+len(regexMatches)+len(behavioral))
	all = append(all, critical...)
	all = append(all, program...)
	all = append(all, regexMatches...)
	all = append(all, behavioral...)

	final := dedupSortCap(all)

	if e.cache != nil {
		go e.cache.SetPatternMatches(context.Background(), fp, final)
	}
	for _, match := range final {
		e.catalogue.Counters().RecordMatch(match.PatternID)
	}

	return final, Stats{PartialFail: partial}, nil
}

// runWithDeadline runs fn on its own goroutine and returns its result
// if it completes before ctx is done; otherwise returns nil, leaving
// the goroutine to finish and be discarded — sub-matchers never hold a
// lock across their return, so this is safe.
func runWithDeadline(ctx context.Context, fn func() []model.PatternMatch) []model.PatternMatch {
	result := make(chan []model.PatternMatch, 1)
	go func() { result <- fn() }()
	select {
	case r := <-result:
		return r
	case <-ctx.Done():
		return nil
	}
}

func dedupSortCap(matches []model.PatternMatch) []model.PatternMatch {
	best := make(map[string]model.PatternMatch, len(matches))
	for _, m := range matches {
		existing, ok := best[m.PatternID]
		if !ok || isHigherPriority(m, existing) {
			best[m.PatternID] = m
		}
	}

	out := make([]model.PatternMatch, 0, len(best))
	for _, m := range best {
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity.Weight() != out[j].Severity.Weight() {
			return out[i].Severity.Weight() > out[j].Severity.Weight()
		}
		return out[i].Confidence > out[j].Confidence
	})

	if len(out) > maxMatches {
		out = out[:maxMatches]
	}
	return out
}

func isHigherPriority(candidate, current model.PatternMatch) bool {
	if candidate.Severity.Weight() != current.Severity.Weight() {
		return candidate.Severity.Weight() > current.Severity.Weight()
	}
	return candidate.Confidence > current.Confidence
}
