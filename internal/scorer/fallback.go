package scorer

import (
	"log"

	"github.com/rawblock/txscan-engine/internal/model"
)

// ScoreWithFallback wraps Score with panic recovery: if the weighted
// fusion formula raises for any reason, a deterministic fallback
// scorer takes over rather than the scan failing outright.
func ScoreWithFallback(details model.ScanDetails, completion Completion) (verdict Verdict) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("scorer: weighted fusion panicked (%v), using fallback", r)
			verdict = fallbackScore(details)
		}
	}()
	return Score(details, completion)
}

// fallbackScore implements spec §4.7's deterministic fallback:
// 30 + 20*|pattern_matches| + 30*anomaly + 10*unknown_programs + 5*|red_flags|,
// clamped to [0,100]; verdict thresholds unchanged.
func fallbackScore(details model.ScanDetails) Verdict {
	patternMatches := 0
	if details.Pattern != nil {
		patternMatches = len(details.Pattern.Matches)
	}
	anomaly := 0.0
	if details.ML != nil {
		anomaly = details.ML.AnomalyScore
	}
	unknownPrograms := 0
	if details.Program != nil {
		unknownPrograms = details.Program.Unknown
	}
	redFlags := 0
	if details.Account != nil {
		redFlags = len(details.Account.RedFlags)
	}

	raw := 30 + 20*float64(patternMatches) + 30*anomaly + 10*float64(unknownPrograms) + 5*float64(redFlags)
	riskScore := int(clip(raw, 0, 100))

	return Verdict{
		RiskScore:  riskScore,
		RiskLevel:  model.ClassifyRiskLevel(riskScore),
		Confidence: 0.3,
	}
}
