package cache

import (
	"context"
	"encoding/json"
	"log"

	"github.com/rawblock/txscan-engine/internal/model"
)

// Namespace names match the spec §4.8 table exactly; defined here so
// every typed accessor below agrees with internal/config's defaults.
const (
	NamespaceScanResults     = "scan_results"
	NamespacePatternMatches  = "pattern_matches"
	NamespaceMLPredictions   = "ml_predictions"
	NamespaceProgramAnalysis = "program_analysis"
	NamespaceAccountAnalysis = "account_analysis"
	NamespaceUserSessions    = "user_sessions"
)

// GetScanResult looks up a previously cached ScanResult by fingerprint.
func (c *Cache) GetScanResult(ctx context.Context, fingerprint string) (model.ScanResult, bool) {
	raw, ok := c.Get(ctx, NamespaceScanResults, fingerprint)
	if !ok {
		return model.ScanResult{}, false
	}
	var result model.ScanResult
	if err := json.Unmarshal(raw, &result); err != nil {
		log.Printf("cache: corrupt scan_results entry for %s: %v", fingerprint, err)
		return model.ScanResult{}, false
	}
	return result, true
}

// SetScanResult caches a ScanResult by fingerprint, fire-and-forget.
func (c *Cache) SetScanResult(ctx context.Context, fingerprint string, result model.ScanResult) {
	raw, err := json.Marshal(result)
	if err != nil {
		log.Printf("cache: failed to marshal scan result for %s: %v", fingerprint, err)
		return
	}
	c.Set(ctx, NamespaceScanResults, fingerprint, raw)
}

// GetPatternMatches and SetPatternMatches satisfy patterns.MatchCache.
func (c *Cache) GetPatternMatches(ctx context.Context, fingerprint string) ([]model.PatternMatch, bool) {
	raw, ok := c.Get(ctx, NamespacePatternMatches, fingerprint)
	if !ok {
		return nil, false
	}
	var matches []model.PatternMatch
	if err := json.Unmarshal(raw, &matches); err != nil {
		log.Printf("cache: corrupt pattern_matches entry for %s: %v", fingerprint, err)
		return nil, false
	}
	return matches, true
}

func (c *Cache) SetPatternMatches(ctx context.Context, fingerprint string, matches []model.PatternMatch) {
	raw, err := json.Marshal(matches)
	if err != nil {
		log.Printf("cache: failed to marshal pattern matches for %s: %v", fingerprint, err)
		return
	}
	c.Set(ctx, NamespacePatternMatches, fingerprint, raw)
}

// GetProgramAnalysis/SetProgramAnalysis cache by the sorted program-set
// key (spec §4.3: "cached under a key derived from the sorted program
// set").
func (c *Cache) GetProgramAnalysis(ctx context.Context, key string) (model.ProgramAnalysis, bool) {
	raw, ok := c.Get(ctx, NamespaceProgramAnalysis, key)
	if !ok {
		return model.ProgramAnalysis{}, false
	}
	var analysis model.ProgramAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		log.Printf("cache: corrupt program_analysis entry for %s: %v", key, err)
		return model.ProgramAnalysis{}, false
	}
	return analysis, true
}

func (c *Cache) SetProgramAnalysis(ctx context.Context, key string, analysis model.ProgramAnalysis) {
	raw, err := json.Marshal(analysis)
	if err != nil {
		log.Printf("cache: failed to marshal program analysis for %s: %v", key, err)
		return
	}
	c.Set(ctx, NamespaceProgramAnalysis, key, raw)
}

// GetMLPrediction/SetMLPrediction cache the ML sub-result by
// transaction fingerprint.
func (c *Cache) GetMLPrediction(ctx context.Context, fingerprint string) (model.MLAnalysis, bool) {
	raw, ok := c.Get(ctx, NamespaceMLPredictions, fingerprint)
	if !ok {
		return model.MLAnalysis{}, false
	}
	var analysis model.MLAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		log.Printf("cache: corrupt ml_predictions entry for %s: %v", fingerprint, err)
		return model.MLAnalysis{}, false
	}
	return analysis, true
}

func (c *Cache) SetMLPrediction(ctx context.Context, fingerprint string, analysis model.MLAnalysis) {
	raw, err := json.Marshal(analysis)
	if err != nil {
		log.Printf("cache: failed to marshal ml prediction for %s: %v", fingerprint, err)
		return
	}
	c.Set(ctx, NamespaceMLPredictions, fingerprint, raw)
}
