package patterns

import (
	"testing"

	"github.com/rawblock/txscan-engine/internal/model"
)

func TestBuildSnapshot_BucketsByKind(t *testing.T) {
	patterns := []model.ExploitPattern{
		{PatternID: "c1", Kind: model.PatternCriticalProgram, ProgramID: "PROG1", IsActive: true},
		{PatternID: "p1", Kind: model.PatternProgram, ProgramID: "PROG2", IsActive: true},
		{PatternID: "r1", Kind: model.PatternInstructionRx, InstructionRegex: "^03", IsActive: true},
		{PatternID: "b1", Kind: model.PatternBehavioral, IsActive: true},
		{PatternID: "a1", Kind: model.PatternAccount, IsActive: true},
		{PatternID: "inactive", Kind: model.PatternProgram, ProgramID: "PROG3", IsActive: false},
	}

	c := NewCatalogue(patterns)
	snap := c.current.Load()

	if len(snap.byProgramCritical["PROG1"]) != 1 {
		t.Error("expected critical program pattern to be indexed")
	}
	if len(snap.byProgram["PROG2"]) != 1 {
		t.Error("expected program pattern to be indexed")
	}
	if len(snap.byProgram["PROG3"]) != 0 {
		t.Error("inactive pattern must not be indexed")
	}
	if len(snap.regexPatterns) != 1 {
		t.Errorf("expected 1 compiled regex pattern, got %d", len(snap.regexPatterns))
	}
	if len(snap.behavioral) != 1 {
		t.Error("expected 1 behavioral pattern")
	}
	if len(snap.accountPatterns) != 1 {
		t.Error("expected 1 account pattern")
	}
}

func TestBuildSnapshot_BadRegexIsDisqualifiedNotFatal(t *testing.T) {
	patterns := []model.ExploitPattern{
		{PatternID: "bad", Kind: model.PatternInstructionRx, InstructionRegex: "(unterminated", IsActive: true},
		{PatternID: "good", Kind: model.PatternInstructionRx, InstructionRegex: "^03", IsActive: true},
	}

	c := NewCatalogue(patterns)
	snap := c.current.Load()

	if len(snap.regexPatterns) != 1 {
		t.Fatalf("expected the bad regex to be skipped and the good one kept, got %d entries", len(snap.regexPatterns))
	}
	if snap.regexPatterns[0].pattern.PatternID != "good" {
		t.Error("expected surviving entry to be the valid pattern")
	}
}

func TestReloadPatterns_SwapsVersionAtomically(t *testing.T) {
	c := NewCatalogue(nil)
	if c.Version() != 0 {
		t.Fatalf("expected initial version 0, got %d", c.Version())
	}
	c.ReloadPatterns([]model.ExploitPattern{{PatternID: "x", Kind: model.PatternProgram, ProgramID: "P", IsActive: true}})
	if c.Version() != 1 {
		t.Errorf("expected version to advance to 1 after reload, got %d", c.Version())
	}
}
