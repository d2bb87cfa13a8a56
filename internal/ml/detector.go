package ml

import (
	"math"

	"github.com/rawblock/txscan-engine/internal/model"
)

// RuleValidator predicates may override the model's verdict. Declared
// here, not in features.go, since it evaluates Features rather than
// extracting them.
type ruleOverride struct {
	reason string
	forced bool
}

// evaluateRuleValidator implements the "wallet-drainer pattern"
// predicate from spec §4.4: many programs, many instructions, and many
// accounts together force p >= 0.9 / Malicious regardless of the
// model's own verdict.
func evaluateRuleValidator(f Features) ruleOverride {
	if f.ProgramCountTotal >= 3 && f.InstructionCount > manyInstructionsThreshold && f.AccountCount > manyAccountsThreshold {
		return ruleOverride{reason: "wallet_drainer_pattern", forced: true}
	}
	return ruleOverride{}
}

// Detector wraps a loaded model (isolationForest, possibly nil) and
// falls back to a deterministic rule tree when none is available.
type Detector struct {
	model *isolationForest
}

// NewDetector builds a Detector. A nil model is valid and causes every
// call to use the rule-only fallback path.
func NewDetector(m *isolationForest) *Detector {
	return &Detector{model: m}
}

// NewDeterministicDetector builds a Detector backed by the hand-rolled
// isolation-forest-style scorer (no externally trained model is
// shipped; see DESIGN.md for why this stays stdlib arithmetic).
func NewDeterministicDetector() *Detector {
	return &Detector{model: newIsolationForest()}
}

// Predict runs feature extraction's output through the model (or the
// rule-only fallback) and returns the classification.
func (d *Detector) Predict(f Features) model.MLAnalysis {
	override := evaluateRuleValidator(f)

	if d.model == nil {
		return d.ruleOnlyFallback(f, override)
	}

	raw, isOutlier := d.model.decisionFunction(f)
	p := rawToProbability(raw, isOutlier)
	if override.forced && p < 0.9 {
		p = 0.9
	}

	classification, confidence := classify(p)
	return model.MLAnalysis{
		Classification: classification,
		AnomalyScore:   p,
		Confidence:     confidence,
		RuleOverride:   override.forced,
		UsedFallback:   false,
	}
}

// ruleOnlyFallback assigns p and a classification from a small
// deterministic decision tree when no model is loaded (spec §4.4:
// "confidence is capped at 0.92").
func (d *Detector) ruleOnlyFallback(f Features, override ruleOverride) model.MLAnalysis {
	p := 0.1
	switch {
	case override.forced:
		p = 0.95
	case f.MaxApprovalMarkerCount > 0 && f.AccountCount > manyAccountsThreshold:
		p = 0.8
	case f.ComplexInstructionCount > 2 && f.ManyInstructionsFlag == 1:
		p = 0.55
	case f.HighComplexityFlag == 1:
		p = 0.4
	}

	classification, confidence := classify(p)
	if confidence > 0.92 {
		confidence = 0.92
	}
	return model.MLAnalysis{
		Classification: classification,
		AnomalyScore:   p,
		Confidence:     confidence,
		RuleOverride:   override.forced,
		UsedFallback:   true,
	}
}

// rawToProbability maps the decision function's raw output to p per
// spec §4.4.
func rawToProbability(raw float64, isOutlier bool) float64 {
	if isOutlier {
		return clip(0.8+math.Abs(raw)*0.2, 0.6, 1.0)
	}
	return clip(0.2+math.Abs(raw)*0.1, 0.0, 0.4)
}

// classify bands p into a classification and confidence per spec
// §4.4's four-tier table.
func classify(p float64) (classification model.MLClassification, confidence float64) {
	switch {
	case p > 0.85:
		return model.MLMalicious, clip(0.85+(p-0.85)*0.87, 0, 0.98)
	case p > 0.65:
		return model.MLSuspicious, clip(0.70+(p-0.65)*1.0, 0, 0.90)
	case p > 0.35:
		return model.MLSuspicious, clip(0.60+(p-0.35)*0.5, 0, 0.75)
	default:
		return model.MLNormal, clip(0.80+(0.35-p)*0.43, 0, 0.95)
	}
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
