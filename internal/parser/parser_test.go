package parser

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"

	"github.com/rawblock/txscan-engine/internal/scanerrors"
)

func validProgramID(seed byte) string {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = seed
	}
	return base58.Encode(raw)
}

func TestParse_StructuredMap_Happy(t *testing.T) {
	p := New(5 * time.Minute)

	tx := map[string]any{
		"programs": []string{validProgramID(1), validProgramID(2)},
		"instructions": []map[string]any{
			{"program_id_index": 0, "accounts": []int{0, 1}, "data": hex.EncodeToString([]byte("hello"))},
		},
		"accounts":             []string{validProgramID(3), validProgramID(4)},
		"signatures_required":  1,
		"recent_blockhash":     "abc123",
		"fee_payer":            validProgramID(3),
	}

	parsed, fp, err := p.Parse(tx)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if parsed.ProgramCount() != 2 {
		t.Errorf("expected 2 programs, got %d", parsed.ProgramCount())
	}
	if parsed.InstructionCount() != 1 {
		t.Errorf("expected 1 instruction, got %d", parsed.InstructionCount())
	}
	if fp == "" {
		t.Error("expected non-empty fingerprint")
	}
}

func TestParse_Base64Blob(t *testing.T) {
	p := New(5 * time.Minute)

	raw := map[string]any{
		"programs":             []string{validProgramID(9)},
		"instructions":         []map[string]any{},
		"accounts":             []string{validProgramID(9)},
		"signatures_required":  1,
		"recent_blockhash":     "xyz",
		"fee_payer":            validProgramID(9),
	}
	buf, _ := json.Marshal(raw)
	blob := base64.StdEncoding.EncodeToString(buf)

	parsed, _, err := p.Parse(blob)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if parsed.ProgramCount() != 1 {
		t.Errorf("expected 1 program, got %d", parsed.ProgramCount())
	}
}

func TestParse_InvalidBase64_ReturnsParseError(t *testing.T) {
	p := New(5 * time.Minute)

	_, _, err := p.Parse("not-valid-base64!!!")
	if !errors.Is(err, scanerrors.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestParse_NoPrograms_IsParseError(t *testing.T) {
	p := New(5 * time.Minute)

	_, _, err := p.Parse(map[string]any{
		"programs":     []string{},
		"instructions": []map[string]any{},
		"accounts":     []string{},
	})
	if !errors.Is(err, scanerrors.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestParse_OutOfRangeInstructionIndex_IsParseError(t *testing.T) {
	p := New(5 * time.Minute)

	_, _, err := p.Parse(map[string]any{
		"programs":     []string{validProgramID(1)},
		"accounts":     []string{validProgramID(2)},
		"instructions": []map[string]any{{"program_id_index": 5, "accounts": []int{0}}},
	})
	if !errors.Is(err, scanerrors.ErrParse) {
		t.Fatalf("expected ErrParse for out-of-range program index, got %v", err)
	}
}

func TestParse_InstructionDataTruncatedAt64Bytes(t *testing.T) {
	p := New(5 * time.Minute)

	longData := strings.Repeat("ab", 100) // 100 bytes hex-decoded
	parsed, _, err := p.Parse(map[string]any{
		"programs":     []string{validProgramID(1)},
		"accounts":     []string{validProgramID(2)},
		"instructions": []map[string]any{{"program_id_index": 0, "accounts": []int{0}, "data": longData}},
	})
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	ix := parsed.Instructions[0]
	if ix.DataLength != 100 {
		t.Errorf("expected full length 100, got %d", ix.DataLength)
	}
	if len(ix.DataHexPrefix) != maxInstructionDataBytes*2 {
		t.Errorf("expected prefix capped at %d bytes, got %d hex chars", maxInstructionDataBytes, len(ix.DataHexPrefix))
	}
}

func TestParse_IdenticalInputsYieldIdenticalFingerprints(t *testing.T) {
	p := New(5 * time.Minute)

	tx := map[string]any{
		"programs":             []string{validProgramID(1), validProgramID(2)},
		"accounts":             []string{validProgramID(3)},
		"instructions":         []map[string]any{},
		"signatures_required":  1,
	}

	_, fp1, err := p.Parse(tx)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	_, fp2, err := p.Parse(tx)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if fp1 != fp2 {
		t.Errorf("expected identical fingerprints for identical inputs, got %q vs %q", fp1, fp2)
	}
}

func TestFingerprint_OrderIndependentOverPrograms(t *testing.T) {
	a := Fingerprint([]string{"X", "Y"}, 2, 3, 1)
	b := Fingerprint([]string{"Y", "X"}, 2, 3, 1)
	if a != b {
		t.Error("expected fingerprint to be independent of program order")
	}
}
