package analyzers

import (
	"strings"

	"github.com/rawblock/txscan-engine/internal/model"
)

// unlimitedApprovalMarker is the all-ones approval pattern the
// account analyzer looks for in instruction data (spec §4.5).
const unlimitedApprovalMarker = "ffffffffffffffff"

// authorityChangeDataLengthThreshold is the instruction-data length
// above which the analyzer heuristically flags an authority/owner
// delegation.
const authorityChangeDataLengthThreshold = 40

// AccountAnalyzer scans instruction data and account layout for the
// three red flags named in spec §4.5.
type AccountAnalyzer struct{}

// NewAccountAnalyzer builds an AccountAnalyzer. It holds no state.
func NewAccountAnalyzer() *AccountAnalyzer {
	return &AccountAnalyzer{}
}

// Analyze inspects tx against userWallet (optional) and returns the
// account/authority sub-result.
func (a *AccountAnalyzer) Analyze(tx *model.ParsedTransaction, userWallet string) model.AccountAnalysis {
	result := model.AccountAnalysis{
		TotalAccounts: tx.AccountCount(),
	}

	unique := make(map[string]int, len(tx.Accounts))
	for _, acc := range tx.Accounts {
		unique[acc]++
	}
	for _, count := range unique {
		if count == 1 {
			result.NewAccounts++
		}
	}

	for _, ix := range tx.Instructions {
		if strings.Contains(ix.DataHexPrefix, unlimitedApprovalMarker) {
			result.UnlimitedApprovals = true
			result.RedFlags = append(result.RedFlags, "unlimited_approval")
		}
		if ix.DataLength > authorityChangeDataLengthThreshold {
			result.AuthorityChanges = true
			result.RedFlags = append(result.RedFlags, "authority_change")
		}
	}

	if result.UnlimitedApprovals {
		result.SuspiciousPatterns = append(result.SuspiciousPatterns, "unlimited_token_approval")
	}
	if result.AuthorityChanges {
		result.SuspiciousPatterns = append(result.SuspiciousPatterns, "authority_delegation")
	}

	if userWallet != "" && len(result.RedFlags) > 0 {
		for _, acc := range tx.Accounts {
			if acc == userWallet {
				result.UserAtRisk = true
				break
			}
		}
	}

	return result
}
