// Package scorer fuses the four analyzer sub-results into a final
// verdict: risk score, risk level, and confidence. Mirrors the
// additive, threshold-banded scoring shape used throughout the scan
// pipeline's sibling analyzers, just weighted across components
// instead of across signals within one analyzer.
package scorer

import (
	"math"

	"github.com/rawblock/txscan-engine/internal/model"
)

// severityWeight is the Pattern-score weighting table (spec §4.7).
var severityWeight = map[model.Severity]float64{
	model.SeverityCritical: 35,
	model.SeverityHigh:     25,
	model.SeverityMedium:   15,
	model.SeverityLow:      8,
}

// mlBase is the ML-score base weighting by classification.
var mlBase = map[model.MLClassification]float64{
	model.MLMalicious:  30,
	model.MLSuspicious: 20,
	model.MLNormal:     10,
}

const (
	patternScoreCap = 35
	mlScoreCap      = 30
	programScoreCap = 20
	accountScoreCap = 15
)

// Completion records which of the four analyzers finished, for the
// degradation floor and final-confidence calculations.
type Completion struct {
	Program bool
	Pattern bool
	ML      bool
	Account bool
}

// count returns how many components completed.
func (c Completion) count() int {
	n := 0
	for _, ok := range []bool{c.Program, c.Pattern, c.ML, c.Account} {
		if ok {
			n++
		}
	}
	return n
}

// Verdict is the scorer's final output.
type Verdict struct {
	RiskScore  int
	RiskLevel  model.RiskLevel
	Confidence float64
}

// Score fuses the four sub-results per spec §4.7. details entries are
// nil when their analyzer did not complete; completion records which
// ran.
func Score(details model.ScanDetails, completion Completion) Verdict {
	mlConfidence := 0.0
	if details.ML != nil {
		mlConfidence = details.ML.Confidence
	}

	if details.Program != nil && details.Program.Blocklisted > 0 {
		return Verdict{
			RiskScore:  100,
			RiskLevel:  model.RiskDanger,
			Confidence: math.Max(mlConfidence, 0.9),
		}
	}

	if hasCriticalProgramMatch(details.Pattern) {
		return Verdict{
			RiskScore:  100,
			RiskLevel:  model.RiskDanger,
			Confidence: math.Max(mlConfidence, 0.9),
		}
	}

	patternScore := clip(scorePattern(details.Pattern), 0, patternScoreCap)
	mlScore := clip(scoreML(details.ML), 0, mlScoreCap)
	programScore := clip(scoreProgram(details.Program), 0, programScoreCap)
	accountScore := clip(scoreAccount(details.Account), 0, accountScoreCap)

	totalConfidence := computeTotalConfidence(details)
	mult := 1.0
	switch {
	case totalConfidence < 0.7:
		mult = 0.8
	case totalConfidence > 0.9:
		mult = 1.1
	}

	raw := clip(patternScore+mlScore+programScore+accountScore, 0, 100) * mult
	riskScore := int(clip(raw, 0, 100))

	if atLeastHalfFailed(completion) && riskScore < 40 {
		riskScore = 40
	}

	finalConfidence := clip(float64(completion.count())/4.0*mlConfidence, 0.3, 0.99)

	return Verdict{
		RiskScore:  riskScore,
		RiskLevel:  model.ClassifyRiskLevel(riskScore),
		Confidence: finalConfidence,
	}
}

func scorePattern(p *model.PatternAnalysis) float64 {
	if p == nil {
		return 0
	}
	var sum float64
	for _, m := range p.Matches {
		sum += severityWeight[m.Severity] * m.Confidence
	}
	return sum
}

func scoreML(ml *model.MLAnalysis) float64 {
	if ml == nil {
		return 0
	}
	return mlBase[ml.Classification] * ml.AnomalyScore * ml.Confidence
}

func scoreProgram(p *model.ProgramAnalysis) float64 {
	if p == nil || p.Total == 0 {
		return 0
	}
	unknownRatio := float64(p.Unknown) / float64(p.Total)
	verifiedRatio := float64(p.Verified) / float64(p.Total)
	return 15*unknownRatio + math.Max(0, 5-5*verifiedRatio)
}

func scoreAccount(a *model.AccountAnalysis) float64 {
	if a == nil {
		return 0
	}
	score := 2 * float64(len(a.RedFlags))
	if a.UnlimitedApprovals {
		score += 8
	}
	if a.AuthorityChanges {
		score += 6
	}
	if a.UserAtRisk {
		score += 4
	}
	return score
}

func computeTotalConfidence(details model.ScanDetails) float64 {
	patternsPresent := details.Pattern != nil && len(details.Pattern.Matches) > 0
	mlConfidence := 0.0
	if details.ML != nil {
		mlConfidence = details.ML.Confidence
	}
	verifiedRatioHigh := false
	if details.Program != nil && details.Program.Total > 0 {
		verifiedRatioHigh = float64(details.Program.Verified)/float64(details.Program.Total) > 0.5
	}
	noRedFlags := details.Account == nil || len(details.Account.RedFlags) == 0

	return 0.3*boolToFloat(patternsPresent) +
		0.4*mlConfidence +
		0.2*boolToFloat(verifiedRatioHigh) +
		0.1*boolToFloat(noRedFlags)
}

// atLeastHalfFailed reports whether 2 or more of the 4 analyzer
// branches failed to complete (spec §8 invariant 3: risk_score >= 40
// once at least half the branches are missing).
func atLeastHalfFailed(c Completion) bool {
	return c.count() <= 2
}

// hasCriticalProgramMatch reports whether any pattern match is a
// critical_program hit, independent of the blocklist mechanism
// (spec §4.2's critical rule).
func hasCriticalProgramMatch(p *model.PatternAnalysis) bool {
	if p == nil {
		return false
	}
	for _, m := range p.Matches {
		if m.Kind == model.PatternCriticalProgram {
			return true
		}
	}
	return false
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func clip(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
