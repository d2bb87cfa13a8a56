// Package analyzers implements the program and account/authority
// analyzers, the two straightforward fan-out branches that do not
// carry the pattern engine's own matching machinery.
package analyzers

import (
	"sort"

	"github.com/rawblock/txscan-engine/internal/model"
)

const (
	programRiskVerified   = 0
	programRiskUnknown    = 30
	programRiskBlocklisted = 100
)

// ProgramRegistry is the engine's snapshot of known-good and known-bad
// programs. A registry value is never mutated after construction, and
// a ProgramAnalyzer keeps the registry it was built with.
type ProgramRegistry struct {
	verified    map[string]float64 // program_id -> reputation_score
	blocklisted map[string]struct{}
}

// NewProgramRegistry builds an immutable registry from the verified set
// (with reputation scores) and the blocklist.
func NewProgramRegistry(verified map[string]float64, blocklisted []string) *ProgramRegistry {
	r := &ProgramRegistry{
		verified:    make(map[string]float64, len(verified)),
		blocklisted: make(map[string]struct{}, len(blocklisted)),
	}
	for id, score := range verified {
		r.verified[id] = score
	}
	for _, id := range blocklisted {
		r.blocklisted[id] = struct{}{}
	}
	return r
}

// ProgramAnalyzer classifies each program referenced by a transaction
// as verified, blocklisted, or unknown.
type ProgramAnalyzer struct {
	registry *ProgramRegistry
}

// NewProgramAnalyzer builds a ProgramAnalyzer bound to a registry.
func NewProgramAnalyzer(registry *ProgramRegistry) *ProgramAnalyzer {
	return &ProgramAnalyzer{registry: registry}
}

// Analyze classifies every program in tx.Programs and summarizes the
// result (spec §4.3).
func (a *ProgramAnalyzer) Analyze(tx *model.ParsedTransaction) model.ProgramAnalysis {
	result := model.ProgramAnalysis{
		Total: tx.ProgramCount(),
	}

	for _, programID := range tx.Programs {
		detail := a.classify(programID)
		result.Details = append(result.Details, detail)

		switch {
		case detail.IsBlocklisted:
			result.Blocklisted++
			result.RiskPrograms = append(result.RiskPrograms, programID)
		case detail.IsVerified:
			result.Verified++
		default:
			result.Unknown++
			result.RiskPrograms = append(result.RiskPrograms, programID)
		}
	}

	sort.Strings(result.RiskPrograms)
	return result
}

func (a *ProgramAnalyzer) classify(programID string) model.ProgramDetail {
	if _, blocked := a.registry.blocklisted[programID]; blocked {
		return model.ProgramDetail{
			ProgramID:       programID,
			IsBlocklisted:   true,
			RiskScore:       programRiskBlocklisted,
			ReputationScore: 0,
		}
	}
	if rep, ok := a.registry.verified[programID]; ok {
		return model.ProgramDetail{
			ProgramID:       programID,
			IsVerified:      true,
			RiskScore:       programRiskVerified,
			ReputationScore: rep,
		}
	}
	return model.ProgramDetail{
		ProgramID:       programID,
		RiskScore:       programRiskUnknown,
		ReputationScore: 0.5,
	}
}

// HasBlocklistedProgram reports whether any program in the analysis is
// blocklisted — the scorer's short-circuit trigger.
func HasBlocklistedProgram(a model.ProgramAnalysis) bool {
	return a.Blocklisted > 0
}
