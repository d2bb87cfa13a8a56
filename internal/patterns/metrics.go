package patterns

import (
	"strings"

	"github.com/rawblock/txscan-engine/internal/model"
)

// transferMarker is a stand-in data prefix recognized as a token
// transfer instruction. Real deployments source this from the token
// program's instruction discriminants; the engine only needs something
// deterministic to evaluate has_token_transfers against.
const transferMarker = "03"

// authorityMarker flags an authority-change-shaped instruction by its
// leading discriminant byte.
const authorityMarker = "06"

// metrics is the derived record behavioral and account-pattern rules
// are evaluated against (spec §4.2 step 2).
type metrics struct {
	ProgramCount        float64
	InstructionCount    float64
	AccountCount        float64
	UniquePrograms       float64
	AvgInstructionSize  float64
	HasTokenTransfers   float64 // 0 or 1, so it composes with equals:1 rules
	HasAuthorityChanges float64
	ComplexityScore     float64
}

func deriveMetrics(tx *model.ParsedTransaction) metrics {
	programCount := tx.ProgramCount()
	instructionCount := tx.InstructionCount()
	accountCount := tx.AccountCount()

	unique := make(map[string]struct{}, programCount)
	for _, p := range tx.Programs {
		unique[p] = struct{}{}
	}

	var totalSize int
	hasTransfer := false
	hasAuthorityChange := false
	for _, ix := range tx.Instructions {
		totalSize += ix.DataLength
		if strings.HasPrefix(ix.DataHexPrefix, transferMarker) {
			hasTransfer = true
		}
		if strings.HasPrefix(ix.DataHexPrefix, authorityMarker) {
			hasAuthorityChange = true
		}
	}

	avgSize := 0.0
	if instructionCount > 0 {
		avgSize = float64(totalSize) / float64(instructionCount)
	}

	denomAccounts := accountCount
	if denomAccounts < 1 {
		denomAccounts = 1
	}
	complexity := float64(instructionCount) * float64(programCount) / float64(denomAccounts)

	m := metrics{
		ProgramCount:        float64(programCount),
		InstructionCount:    float64(instructionCount),
		AccountCount:        float64(accountCount),
		UniquePrograms:      float64(len(unique)),
		AvgInstructionSize:  avgSize,
		HasAuthorityChanges: boolToFloat(hasAuthorityChange),
		HasTokenTransfers:   boolToFloat(hasTransfer),
		ComplexityScore:     complexity,
	}
	return m
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// asMap exposes the metrics record by field name for rule evaluation.
func (m metrics) asMap() map[string]float64 {
	return map[string]float64{
		"program_count":         m.ProgramCount,
		"instruction_count":     m.InstructionCount,
		"account_count":         m.AccountCount,
		"unique_programs":       m.UniquePrograms,
		"avg_instruction_size":  m.AvgInstructionSize,
		"has_token_transfers":   m.HasTokenTransfers,
		"has_authority_changes": m.HasAuthorityChanges,
		"complexity_score":      m.ComplexityScore,
	}
}

// evaluateRules reports whether every declared constraint in rules
// matches against values. An unknown metric name, or a constraint with
// no bound set, evaluates as not-matched rather than erroring — a
// malformed catalogue entry must never crash a scan.
func evaluateRules(rules map[string]model.RuleConstraint, values map[string]float64) bool {
	if len(rules) == 0 {
		return false
	}
	for metricName, constraint := range rules {
		v, ok := values[metricName]
		if !ok {
			return false
		}
		if !constraintMatches(constraint, v) {
			return false
		}
	}
	return true
}

func constraintMatches(c model.RuleConstraint, v float64) bool {
	switch {
	case c.Equals != nil:
		return v == *c.Equals
	case c.Min != nil && c.Max != nil:
		return v >= *c.Min && v <= *c.Max
	case c.Min != nil:
		return v >= *c.Min
	case c.Max != nil:
		return v <= *c.Max
	default:
		return false
	}
}
