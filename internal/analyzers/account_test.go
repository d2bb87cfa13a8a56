package analyzers

import (
	"testing"

	"github.com/rawblock/txscan-engine/internal/model"
)

func TestAccountAnalyzer_UnlimitedApprovalFlag(t *testing.T) {
	a := NewAccountAnalyzer()
	tx := &model.ParsedTransaction{
		Accounts: []string{"wallet1", "wallet2"},
		Instructions: []model.Instruction{
			{DataHexPrefix: "00ffffffffffffffff00", DataLength: 10},
		},
	}

	result := a.Analyze(tx, "")
	if !result.UnlimitedApprovals {
		t.Error("expected unlimited_approvals to be detected")
	}
	if len(result.RedFlags) == 0 {
		t.Error("expected a red flag to be recorded")
	}
}

func TestAccountAnalyzer_AuthorityChangeByDataLength(t *testing.T) {
	a := NewAccountAnalyzer()
	tx := &model.ParsedTransaction{
		Accounts: []string{"wallet1"},
		Instructions: []model.Instruction{
			{DataHexPrefix: "00", DataLength: authorityChangeDataLengthThreshold + 1},
		},
	}
	result := a.Analyze(tx, "")
	if !result.AuthorityChanges {
		t.Error("expected authority_changes to be detected for oversized instruction data")
	}
}

func TestAccountAnalyzer_UserAtRiskRequiresRedFlagAndPresence(t *testing.T) {
	a := NewAccountAnalyzer()

	tx := &model.ParsedTransaction{
		Accounts: []string{"user_wallet", "other"},
		Instructions: []model.Instruction{
			{DataHexPrefix: "00ffffffffffffffff00", DataLength: 10},
		},
	}

	result := a.Analyze(tx, "user_wallet")
	if !result.UserAtRisk {
		t.Error("expected user_at_risk when wallet is present and a red flag fired")
	}

	resultNoWallet := a.Analyze(tx, "absent_wallet")
	if resultNoWallet.UserAtRisk {
		t.Error("expected user_at_risk false when wallet not in accounts")
	}

	cleanTx := &model.ParsedTransaction{Accounts: []string{"user_wallet"}}
	resultNoFlags := a.Analyze(cleanTx, "user_wallet")
	if resultNoFlags.UserAtRisk {
		t.Error("expected user_at_risk false when no red flags fired, even if wallet present")
	}
}

func TestAccountAnalyzer_NewAccountsCountsSingleOccurrence(t *testing.T) {
	a := NewAccountAnalyzer()
	tx := &model.ParsedTransaction{Accounts: []string{"x", "x", "y"}}
	result := a.Analyze(tx, "")
	if result.NewAccounts != 1 {
		t.Errorf("expected 1 new account (y), got %d", result.NewAccounts)
	}
}
