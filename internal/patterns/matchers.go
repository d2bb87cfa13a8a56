package patterns

import (
	"strconv"
	"time"

	"github.com/rawblock/txscan-engine/internal/model"
)

// matchCriticalPrograms checks the direct hit table for critical_program
// patterns. This is the one sub-matcher the engine never skips or times
// out: the scorer treats any match carrying Kind ==
// model.PatternCriticalProgram as a short-circuit to risk_score 100,
// independent of every other analyzer's outcome (spec §4.2's critical
// rule).
func matchCriticalPrograms(snap *snapshot, programs []string) []model.PatternMatch {
	start := time.Now()
	var out []model.PatternMatch
	for _, programID := range programs {
		for _, p := range snap.byProgramCritical[programID] {
			out = append(out, model.PatternMatch{
				PatternID:   p.PatternID,
				Name:        p.Name,
				Kind:        model.PatternCriticalProgram,
				Severity:    p.Severity,
				Confidence:  p.BaseConfidence,
				Evidence:    map[string]string{"program_id": programID},
				MatchTimeMs: elapsedMs(start),
			})
		}
	}
	return out
}

// matchPrograms checks the program direct-hit table and applies the
// false-positive-rate confidence adjustment (spec §4.2).
func matchPrograms(snap *snapshot, programs []string, counters *CounterTable) []model.PatternMatch {
	start := time.Now()
	var out []model.PatternMatch
	for _, programID := range programs {
		for _, p := range snap.byProgram[programID] {
			out = append(out, model.PatternMatch{
				PatternID:   p.PatternID,
				Name:        p.Name,
				Kind:        model.PatternProgram,
				Severity:    p.Severity,
				Confidence:  adjustConfidence(p.BaseConfidence, counters.Rate(p.PatternID)),
				Evidence:    map[string]string{"program_id": programID},
				MatchTimeMs: elapsedMs(start),
			})
		}
	}
	return out
}

// adjustConfidence implements effective_confidence = base * (1 - 0.3 *
// fp_rate), clamped to [0.1, 0.99].
func adjustConfidence(base, fpRate float64) float64 {
	c := base * (1 - 0.3*fpRate)
	if c < 0.1 {
		return 0.1
	}
	if c > 0.99 {
		return 0.99
	}
	return c
}

// matchInstructionRegex scans every instruction's hex data against the
// precompiled regex list, sequentially, per spec §4.2.
func matchInstructionRegex(snap *snapshot, instructions []model.Instruction) []model.PatternMatch {
	start := time.Now()
	var out []model.PatternMatch
	for _, ix := range instructions {
		for _, crp := range snap.regexPatterns {
			if crp.re.MatchString(ix.DataHexPrefix) {
				out = append(out, model.PatternMatch{
					PatternID:  crp.pattern.PatternID,
					Name:       crp.pattern.Name,
					Kind:       model.PatternInstructionRx,
					Severity:   crp.pattern.Severity,
					Confidence: crp.pattern.BaseConfidence,
					Evidence: map[string]string{
						"instruction_index": strconv.Itoa(ix.Index),
					},
					MatchTimeMs: elapsedMs(start),
				})
			}
		}
	}
	return out
}

// matchBehavioralAndAccount evaluates every behavioral and
// account_pattern entry against the derived metrics record.
func matchBehavioralAndAccount(snap *snapshot, values map[string]float64) []model.PatternMatch {
	start := time.Now()
	var out []model.PatternMatch
	for _, p := range snap.behavioral {
		if evaluateRules(p.BehavioralRules, values) {
			out = append(out, model.PatternMatch{
				PatternID:   p.PatternID,
				Name:        p.Name,
				Kind:        model.PatternBehavioral,
				Severity:    p.Severity,
				Confidence:  p.BaseConfidence,
				Evidence:    map[string]string{"rule_kind": "behavioral"},
				MatchTimeMs: elapsedMs(start),
			})
		}
	}
	for _, p := range snap.accountPatterns {
		if evaluateRules(p.AccountPattern, values) {
			out = append(out, model.PatternMatch{
				PatternID:   p.PatternID,
				Name:        p.Name,
				Kind:        model.PatternAccount,
				Severity:    p.Severity,
				Confidence:  p.BaseConfidence,
				Evidence:    map[string]string{"rule_kind": "account_pattern"},
				MatchTimeMs: elapsedMs(start),
			})
		}
	}
	return out
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
