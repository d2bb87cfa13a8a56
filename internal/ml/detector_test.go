package ml

import (
	"testing"

	"github.com/rawblock/txscan-engine/internal/model"
)

func TestClassify_Bands(t *testing.T) {
	cases := []struct {
		p        float64
		expected model.MLClassification
	}{
		{0.9, model.MLMalicious},
		{0.7, model.MLSuspicious},
		{0.5, model.MLSuspicious},
		{0.1, model.MLNormal},
	}
	for _, c := range cases {
		got, confidence := classify(c.p)
		if got != c.expected {
			t.Errorf("classify(%v) = %v, want %v", c.p, got, c.expected)
		}
		if confidence < 0 || confidence > 1 {
			t.Errorf("classify(%v) confidence out of range: %v", c.p, confidence)
		}
	}
}

func TestRuleValidator_WalletDrainerForcesOverride(t *testing.T) {
	f := Features{
		ProgramCountTotal: 4,
		InstructionCount:  manyInstructionsThreshold + 1,
		AccountCount:      manyAccountsThreshold + 1,
	}
	o := evaluateRuleValidator(f)
	if !o.forced {
		t.Error("expected rule validator to force an override for wallet-drainer shape")
	}
}

func TestRuleValidator_NoOverrideForOrdinaryTransaction(t *testing.T) {
	f := Features{ProgramCountTotal: 1, InstructionCount: 2, AccountCount: 3}
	o := evaluateRuleValidator(f)
	if o.forced {
		t.Error("expected no override for an ordinary transaction")
	}
}

func TestDetector_RuleOnlyFallback_CapsConfidenceAt092(t *testing.T) {
	d := NewDetector(nil)
	f := Features{
		ProgramCountTotal: 4,
		InstructionCount:  manyInstructionsThreshold + 1,
		AccountCount:      manyAccountsThreshold + 1,
	}
	result := d.Predict(f)
	if !result.UsedFallback {
		t.Error("expected UsedFallback when no model is loaded")
	}
	if result.Confidence > 0.92 {
		t.Errorf("expected fallback confidence capped at 0.92, got %v", result.Confidence)
	}
	if result.Classification != model.MLMalicious {
		t.Errorf("expected forced Malicious classification, got %v", result.Classification)
	}
}

func TestDetector_DeterministicModel_NeverUsesFallback(t *testing.T) {
	d := NewDeterministicDetector()
	f := ExtractFeatures(&model.ParsedTransaction{
		Programs:     []string{"A", "B"},
		Instructions: []model.Instruction{{DataLength: 10}},
		Accounts:     []string{"x", "y"},
	}, 1)

	result := d.Predict(f)
	if result.UsedFallback {
		t.Error("expected the deterministic model path, not the rule-only fallback")
	}
}

func TestExtractFeatures_FixedArity(t *testing.T) {
	f := ExtractFeatures(&model.ParsedTransaction{}, 0)
	if len(f.Vector()) != FeatureCount {
		t.Errorf("expected %d features, got %d", FeatureCount, len(f.Vector()))
	}
}
