// Package parser decodes a caller-submitted transaction — a base64
// blob or a structured map — into the normalized model.ParsedTransaction
// shape, enforcing the instruction-data retention cap and computing the
// fingerprint used as the cache key for every downstream component.
package parser

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"

	"github.com/rawblock/txscan-engine/internal/model"
	"github.com/rawblock/txscan-engine/internal/scanerrors"
)

// maxInstructionDataBytes bounds how much instruction payload the
// parser retains; everything past this is counted in the length only.
const maxInstructionDataBytes = 64

// programIDLength is the expected decoded length of a base58 program
// or account identifier (spec's 44-char base58 convention).
const programIDLength = 32

// Parser decodes raw transaction input and caches recent fingerprints.
// A Parser is safe for concurrent use.
type Parser struct {
	cache *fingerprintCache
}

// New builds a Parser whose internal decode cache entries expire after
// ttl (spec §4.1: "short TTL, ~5 minutes").
func New(ttl time.Duration) *Parser {
	return &Parser{cache: newFingerprintCache(ttl)}
}

// rawTransaction is the structured-map shape accepted directly, and
// also the shape a decoded base64 blob is expected to unmarshal into.
type rawTransaction struct {
	Programs           []string        `json:"programs"`
	Instructions       []rawInstruction `json:"instructions"`
	Accounts           []string        `json:"accounts"`
	SignaturesRequired int             `json:"signatures_required"`
	RecentBlockhash    string          `json:"recent_blockhash"`
	FeePayer           string          `json:"fee_payer"`
}

type rawInstruction struct {
	ProgramIDIndex int    `json:"program_id_index"`
	Accounts       []int  `json:"accounts"`
	Data           string `json:"data"` // hex or base64, see decodeInstructionData
}

// Parse accepts either a base64-encoded JSON blob (string) or an
// already-structured map[string]any and returns the normalized
// transaction along with its fingerprint. On any structural violation
// it returns a *scanerrors.ParseError.
func (p *Parser) Parse(input any) (*model.ParsedTransaction, string, error) {
	raw, err := toRawTransaction(input)
	if err != nil {
		return nil, "", err
	}

	if err := validateRaw(raw); err != nil {
		return nil, "", err
	}

	fp := Fingerprint(raw.Programs, len(raw.Instructions), len(raw.Accounts), raw.SignaturesRequired)

	if cached, ok := p.cache.get(fp); ok {
		return cached, fp, nil
	}

	parsed := &model.ParsedTransaction{
		Programs:           append([]string(nil), raw.Programs...),
		Accounts:           append([]string(nil), raw.Accounts...),
		SignaturesRequired: raw.SignaturesRequired,
		RecentBlockhash:    raw.RecentBlockhash,
		FeePayer:           raw.FeePayer,
	}
	parsed.Instructions = make([]model.Instruction, 0, len(raw.Instructions))
	for i, ri := range raw.Instructions {
		prefix, full, err := decodeInstructionData(ri.Data)
		if err != nil {
			return nil, "", scanerrors.NewParseError(fmt.Sprintf("instruction %d: %v", i, err))
		}
		parsed.Instructions = append(parsed.Instructions, model.Instruction{
			Index:          i,
			ProgramIDIndex: ri.ProgramIDIndex,
			AccountIndexes: append([]int(nil), ri.Accounts...),
			DataHexPrefix:  prefix,
			DataLength:     full,
		})
	}

	p.cache.put(fp, parsed)
	return parsed, fp, nil
}

// Fingerprint computes the deterministic, collision-resistant hash used
// as a cache key throughout the pipeline: sorted programs, instruction
// count, account count, and signatures required (spec §4.2 step 1).
func Fingerprint(programs []string, instructionCount, accountCount, signaturesRequired int) string {
	sorted := append([]string(nil), programs...)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(strings.Join(sorted, ",")))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(instructionCount)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(accountCount)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(signaturesRequired)))
	return hex.EncodeToString(h.Sum(nil))
}

func toRawTransaction(input any) (*rawTransaction, error) {
	switch v := input.(type) {
	case string:
		blob, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, scanerrors.NewParseError("invalid base64: " + err.Error())
		}
		var raw rawTransaction
		if err := json.Unmarshal(blob, &raw); err != nil {
			return nil, scanerrors.NewParseError("malformed decoded payload: " + err.Error())
		}
		return &raw, nil
	case map[string]any:
		buf, err := json.Marshal(v)
		if err != nil {
			return nil, scanerrors.NewParseError("unrepresentable structured input: " + err.Error())
		}
		var raw rawTransaction
		if err := json.Unmarshal(buf, &raw); err != nil {
			return nil, scanerrors.NewParseError("malformed structured input: " + err.Error())
		}
		return &raw, nil
	case *rawTransaction:
		return v, nil
	default:
		return nil, scanerrors.NewParseError(fmt.Sprintf("unsupported input type %T", input))
	}
}

func validateRaw(raw *rawTransaction) error {
	if len(raw.Programs) == 0 {
		return scanerrors.NewParseError("transaction has no programs")
	}
	if raw.SignaturesRequired < 0 {
		return scanerrors.NewParseError("negative signatures_required")
	}
	for _, id := range raw.Programs {
		if !isValidProgramID(id) {
			return scanerrors.NewParseError("invalid program id: " + id)
		}
	}
	for _, ix := range raw.Instructions {
		if ix.ProgramIDIndex < 0 || ix.ProgramIDIndex >= len(raw.Programs) {
			return scanerrors.NewParseError("instruction references out-of-range program index")
		}
		for _, a := range ix.Accounts {
			if a < 0 || a >= len(raw.Accounts) {
				return scanerrors.NewParseError("instruction references out-of-range account index")
			}
		}
	}
	return nil
}

// isValidProgramID checks the spec's 44-char base58 convention via the
// same base58 alphabet the btcutil package already implements.
func isValidProgramID(id string) bool {
	if len(id) == 0 {
		return false
	}
	decoded := base58.Decode(id)
	return len(decoded) == programIDLength
}

// decodeInstructionData accepts hex or base64 instruction payload,
// returns the first maxInstructionDataBytes as a hex prefix and the
// full decoded length. Raw signature bytes are never present in this
// field and are never retained past this call.
func decodeInstructionData(data string) (prefix string, length int, err error) {
	if data == "" {
		return "", 0, nil
	}
	decoded, derr := hex.DecodeString(data)
	if derr != nil {
		decoded, derr = base64.StdEncoding.DecodeString(data)
		if derr != nil {
			return "", 0, fmt.Errorf("data is neither valid hex nor base64")
		}
	}
	length = len(decoded)
	if length > maxInstructionDataBytes {
		decoded = decoded[:maxInstructionDataBytes]
	}
	return hex.EncodeToString(decoded), length, nil
}
