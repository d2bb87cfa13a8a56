// Package ml implements the anomaly detector: fixed 25-dimensional
// feature extraction from a ParsedTransaction, a deterministic
// isolation-forest-style scorer with a rule-validator override, and a
// rule-only fallback path for when no model is loaded.
package ml

import (
	"math"
	"strings"

	"github.com/rawblock/txscan-engine/internal/model"
)

// FeatureCount is the fixed arity named in spec §4.4. Order is
// implementation-defined but must stay stable across a process's life
// since the standardizer is fit to it.
const FeatureCount = 25

// systemProgramID and tokenProgramID are the two well-known program
// ids the feature extractor checks presence of.
const (
	systemProgramID = "11111111111111111111111111111111"
	tokenProgramID  = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
)

const complexInstructionDataLength = 32
const manyInstructionsThreshold = 10
const manyAccountsThreshold = 20

// Features is the extracted 25-dimensional vector, named by index for
// readability; Vector() flattens it to the arity the model consumes.
type Features struct {
	ProgramCountTotal     float64
	ProgramCountVerified  float64
	ProgramCountUnknown   float64
	HasSystemProgram      float64
	HasTokenProgram       float64

	InstructionCount          float64
	InstructionDataMeanLen    float64
	InstructionDataMaxLen     float64
	InstructionDataStdDevLen  float64
	ComplexInstructionCount   float64
	MaxApprovalMarkerCount    float64
	MultiAccountInstrCount    float64
	ManyInstructionsFlag      float64

	AccountCount          float64
	UniqueAccountCount    float64
	NewAccountCount       float64
	InvalidLengthAccounts float64
	ManyAccountsFlag      float64
	AccountInstructionRatio float64
	DuplicateAccountsFlag float64

	TotalDataSize        float64
	AvgInstructionSize   float64
	ProgramsTimesInstrs  float64
	HighComplexityFlag   float64
	SignaturesRequired   float64
}

// Vector flattens Features into the fixed-order slice the scorer and
// standardizer operate on.
func (f Features) Vector() [FeatureCount]float64 {
	return [FeatureCount]float64{
		f.ProgramCountTotal, f.ProgramCountVerified, f.ProgramCountUnknown,
		f.HasSystemProgram, f.HasTokenProgram,
		f.InstructionCount, f.InstructionDataMeanLen, f.InstructionDataMaxLen,
		f.InstructionDataStdDevLen, f.ComplexInstructionCount, f.MaxApprovalMarkerCount,
		f.MultiAccountInstrCount, f.ManyInstructionsFlag,
		f.AccountCount, f.UniqueAccountCount, f.NewAccountCount,
		f.InvalidLengthAccounts, f.ManyAccountsFlag, f.AccountInstructionRatio,
		f.DuplicateAccountsFlag,
		f.TotalDataSize, f.AvgInstructionSize, f.ProgramsTimesInstrs,
		f.HighComplexityFlag, f.SignaturesRequired,
	}
}

// ExtractFeatures computes the fixed feature vector for tx. verifiedCount
// is supplied by the caller (the orchestrator already ran the program
// analyzer and knows this without re-deriving it).
func ExtractFeatures(tx *model.ParsedTransaction, verifiedCount int) Features {
	programCount := tx.ProgramCount()
	instructionCount := tx.InstructionCount()
	accountCount := tx.AccountCount()

	hasSystem, hasToken := 0.0, 0.0
	for _, p := range tx.Programs {
		if p == systemProgramID {
			hasSystem = 1
		}
		if p == tokenProgramID {
			hasToken = 1
		}
	}

	lens := make([]float64, 0, instructionCount)
	var totalSize float64
	complexCount, approvalCount, multiAccountCount := 0.0, 0.0, 0.0
	for _, ix := range tx.Instructions {
		l := float64(ix.DataLength)
		lens = append(lens, l)
		totalSize += l
		if ix.DataLength > complexInstructionDataLength {
			complexCount++
		}
		if strings.Contains(ix.DataHexPrefix, "ffffffffffffffff") {
			approvalCount++
		}
		if len(ix.AccountIndexes) > 2 {
			multiAccountCount++
		}
	}

	meanLen, maxLen, stdDevLen := meanMaxStdDev(lens)

	unique := make(map[string]int, accountCount)
	for _, a := range tx.Accounts {
		unique[a]++
	}
	newAccounts, invalidLength, duplicate := 0.0, 0.0, 0.0
	for acct, count := range unique {
		if count == 1 {
			newAccounts++
		}
		if count > 1 {
			duplicate = 1
		}
		if len(acct) == 0 {
			invalidLength++
		}
	}

	ratio := 0.0
	if instructionCount > 0 {
		ratio = float64(accountCount) / float64(instructionCount)
	}

	avgInstrSize := 0.0
	if instructionCount > 0 {
		avgInstrSize = totalSize / float64(instructionCount)
	}

	return Features{
		ProgramCountTotal:    float64(programCount),
		ProgramCountVerified: float64(verifiedCount),
		ProgramCountUnknown:  float64(programCount - verifiedCount),
		HasSystemProgram:     hasSystem,
		HasTokenProgram:      hasToken,

		InstructionCount:         float64(instructionCount),
		InstructionDataMeanLen:   meanLen,
		InstructionDataMaxLen:    maxLen,
		InstructionDataStdDevLen: stdDevLen,
		ComplexInstructionCount:  complexCount,
		MaxApprovalMarkerCount:   approvalCount,
		MultiAccountInstrCount:   multiAccountCount,
		ManyInstructionsFlag:     flagIf(instructionCount > manyInstructionsThreshold),

		AccountCount:            float64(accountCount),
		UniqueAccountCount:      float64(len(unique)),
		NewAccountCount:         newAccounts,
		InvalidLengthAccounts:   invalidLength,
		ManyAccountsFlag:        flagIf(accountCount > manyAccountsThreshold),
		AccountInstructionRatio: ratio,
		DuplicateAccountsFlag:   duplicate,

		TotalDataSize:       totalSize,
		AvgInstructionSize:  avgInstrSize,
		ProgramsTimesInstrs: float64(programCount * instructionCount),
		HighComplexityFlag:  flagIf(programCount*instructionCount > manyInstructionsThreshold*manyAccountsThreshold),
		SignaturesRequired:  float64(tx.SignaturesRequired),
	}
}

func flagIf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func meanMaxStdDev(values []float64) (mean, max, stdDev float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
		if v > max {
			max = v
		}
	}
	mean = sum / float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	stdDev = math.Sqrt(variance)
	return mean, max, stdDev
}
