package patterns

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rawblock/txscan-engine/internal/model"
)

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]model.PatternMatch
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]model.PatternMatch)}
}

func (f *fakeCache) GetPatternMatches(ctx context.Context, fingerprint string) ([]model.PatternMatch, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.data[fingerprint]
	return m, ok
}

func (f *fakeCache) SetPatternMatches(ctx context.Context, fingerprint string, matches []model.PatternMatch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[fingerprint] = matches
}

func samplePatterns() []model.ExploitPattern {
	return []model.ExploitPattern{
		{
			PatternID:      "critical-drain",
			Name:           "Known drainer program",
			Kind:           model.PatternCriticalProgram,
			Severity:       model.SeverityCritical,
			BaseConfidence: 0.95,
			ProgramID:      "DRAINER",
			IsActive:       true,
		},
		{
			PatternID:      "behav-wallet-drainer",
			Name:           "Wallet drainer shape",
			Kind:           model.PatternBehavioral,
			Severity:       model.SeverityHigh,
			BaseConfidence: 0.8,
			BehavioralRules: map[string]model.RuleConstraint{
				"account_count": {Min: floatPtr(10)},
			},
			IsActive: true,
		},
	}
}

func floatPtr(f float64) *float64 { return &f }

func TestEngine_Match_CriticalProgramShortCircuitCandidate(t *testing.T) {
	catalogue := NewCatalogue(samplePatterns())
	engine := NewEngine(catalogue, nil, DefaultDeadlines())

	tx := &model.ParsedTransaction{
		Programs:     []string{"DRAINER"},
		Instructions: []model.Instruction{},
		Accounts:     []string{"a"},
	}

	matches, stats, err := engine.Match(context.Background(), tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.FromCache {
		t.Error("expected fresh match, not a cache hit, on first call")
	}
	found := false
	for _, m := range matches {
		if m.PatternID == "critical-drain" {
			found = true
		}
	}
	if !found {
		t.Error("expected critical_program pattern to be matched")
	}
}

func TestEngine_Match_CacheHitShortCircuitsSubMatchers(t *testing.T) {
	catalogue := NewCatalogue(samplePatterns())
	cache := newFakeCache()
	engine := NewEngine(catalogue, cache, DefaultDeadlines())

	tx := &model.ParsedTransaction{Programs: []string{"X"}, Accounts: []string{"a"}}

	_, stats1, err := engine.Match(context.Background(), tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats1.FromCache {
		t.Fatal("first call should be a miss")
	}

	// The engine writes to the cache fire-and-forget; wait for it to land.
	for i := 0; i < 100; i++ {
		cache.mu.Lock()
		n := len(cache.data)
		cache.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	_, stats2, err := engine.Match(context.Background(), tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stats2.FromCache {
		t.Error("second call with identical fingerprint should be a cache hit")
	}
}

func TestDedupSortCap_KeepsHighestSeverityAndConfidence(t *testing.T) {
	matches := []model.PatternMatch{
		{PatternID: "p1", Severity: model.SeverityLow, Confidence: 0.9},
		{PatternID: "p1", Severity: model.SeverityHigh, Confidence: 0.5},
		{PatternID: "p2", Severity: model.SeverityCritical, Confidence: 0.3},
	}
	out := dedupSortCap(matches)

	if len(out) != 2 {
		t.Fatalf("expected 2 deduped matches, got %d", len(out))
	}
	if out[0].PatternID != "p2" {
		t.Errorf("expected p2 (critical) first, got %s", out[0].PatternID)
	}
	if out[1].Severity != model.SeverityHigh {
		t.Errorf("expected p1's surviving instance to be the high-severity one, got %s", out[1].Severity)
	}
}

func TestDedupSortCap_CapsAtTwenty(t *testing.T) {
	var matches []model.PatternMatch
	for i := 0; i < 30; i++ {
		matches = append(matches, model.PatternMatch{
			PatternID: string(rune('a' + i)),
			Severity:  model.SeverityMedium,
			Confidence: 0.5,
		})
	}
	out := dedupSortCap(matches)
	if len(out) != maxMatches {
		t.Errorf("expected cap of %d, got %d", maxMatches, len(out))
	}
}
