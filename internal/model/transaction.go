// Package model holds the plain data shapes shared across the scan
// pipeline: the normalized transaction, the pattern catalogue entries,
// matches, and the final scan result. No behavior lives here.
package model

// Instruction is one entry in a transaction's ordered instruction list.
type Instruction struct {
	Index           int    `json:"index"`
	ProgramIDIndex  int    `json:"programIdIndex"`
	AccountIndexes  []int  `json:"accountIndexes"`
	DataHexPrefix   string `json:"dataHexPrefix"` // first 64 bytes, hex-encoded
	DataLength      int    `json:"dataLength"`    // full length, even if truncated above
}

// ParsedTransaction is the normalized, immutable shape the parser
// produces. It is owned exclusively by one scan for its lifetime and
// is never retained raw by the cache layer (only its fingerprint is).
type ParsedTransaction struct {
	Programs            []string      `json:"programs"`
	Instructions         []Instruction `json:"instructions"`
	Accounts            []string      `json:"accounts"`
	SignaturesRequired  int           `json:"signaturesRequired"`
	RecentBlockhash     string        `json:"recentBlockhash"`
	FeePayer            string        `json:"feePayer"`
}

// ProgramCount returns len(Programs), guarding against a nil slice.
func (p *ParsedTransaction) ProgramCount() int {
	if p == nil {
		return 0
	}
	return len(p.Programs)
}

// InstructionCount returns len(Instructions), guarding against nil.
func (p *ParsedTransaction) InstructionCount() int {
	if p == nil {
		return 0
	}
	return len(p.Instructions)
}

// AccountCount returns len(Accounts), guarding against nil.
func (p *ParsedTransaction) AccountCount() int {
	if p == nil {
		return 0
	}
	return len(p.Accounts)
}
