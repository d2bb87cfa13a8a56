// Package threatfeed is the external-scheduler side of the pattern
// catalogue's reload hook (spec §1: "the core exposes a ReloadPatterns()
// hook; an external scheduler decides when"). It owns none of the
// catalogue's matching logic — it only decides when to call it and
// how to recover when a fetch fails.
package threatfeed

import (
	"context"
	"log"
	"time"

	"github.com/rawblock/txscan-engine/internal/model"
)

// Source fetches the current full exploit-pattern set from wherever
// threat intelligence is published (API, RSS, manual curation feed).
// A Source returns the complete set each call; the scheduler does not
// attempt incremental diffing.
type Source interface {
	FetchPatterns(ctx context.Context) ([]model.ExploitPattern, error)
}

// CatalogueReloader is the narrow reload contract the scheduler needs
// from *patterns.Catalogue, declared locally so this package never
// imports internal/patterns.
type CatalogueReloader interface {
	ReloadPatterns(patterns []model.ExploitPattern)
}

// Scheduler runs Source.FetchPatterns on a fixed interval and swaps the
// result into the catalogue, retrying sooner on failure. Mirrors the
// teacher's mempool.Poller: a ticker+select run loop that owns no state
// beyond what a single tick needs.
type Scheduler struct {
	source   Source
	target   CatalogueReloader
	interval time.Duration
	retry    time.Duration
}

// NewScheduler builds a Scheduler. interval is the steady-state reload
// period; retry is how soon to try again after a failed fetch.
func NewScheduler(source Source, target CatalogueReloader, interval, retry time.Duration) *Scheduler {
	return &Scheduler{source: source, target: target, interval: interval, retry: retry}
}

// Run blocks until ctx is canceled. It fetches once at start, then
// reloads the catalogue every interval (or retry, after a failed fetch).
func (s *Scheduler) Run(ctx context.Context) {
	if s.source == nil || s.target == nil {
		log.Println("threatfeed: no source/target configured, scheduler will not start")
		return
	}

	log.Println("threatfeed: starting pattern-reload scheduler")

	wait := time.Duration(0)
	for {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Println("threatfeed: stopping pattern-reload scheduler")
			return
		case <-timer.C:
		}

		if err := s.runOnce(ctx); err != nil {
			log.Printf("threatfeed: pattern reload failed, retrying in %s: %v", s.retry, err)
			wait = s.retry
			continue
		}
		wait = s.interval
	}
}

func (s *Scheduler) runOnce(ctx context.Context) error {
	fetched, err := s.source.FetchPatterns(ctx)
	if err != nil {
		return err
	}
	s.target.ReloadPatterns(fetched)
	log.Printf("threatfeed: reloaded %d patterns", len(fetched))
	return nil
}
