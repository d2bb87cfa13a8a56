package model

// PatternKind is the catalogue bucket an ExploitPattern belongs to.
type PatternKind string

const (
	PatternCriticalProgram PatternKind = "critical_program"
	PatternProgram         PatternKind = "program"
	PatternInstructionRx   PatternKind = "instruction_regex"
	PatternBehavioral      PatternKind = "behavioral"
	PatternAccount         PatternKind = "account_pattern"
)

// Severity is the exploit-pattern severity band.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// severityWeight orders severities for sorting/deduping matches.
var severityWeight = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Weight returns a numeric rank used to order matches by severity.
func (s Severity) Weight() int {
	return severityWeight[s]
}

// RuleConstraint describes one behavioral-rule bound: {min: v},
// {max: v}, {equals: v}. Exactly one of the pointers is set.
type RuleConstraint struct {
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Equals *float64 `json:"equals,omitempty"`
}

// ExploitPattern is one catalogue entry. Loaded at startup and on
// ReloadPatterns(); never mutated in place — reloads replace the whole
// index atomically. Effectiveness counters live outside this struct
// (see patterns.CounterTable) so reloads never race counter writes.
type ExploitPattern struct {
	PatternID        string                     `json:"patternId"`
	Name             string                     `json:"name"`
	Description      string                     `json:"description"`
	Kind             PatternKind                `json:"kind"`
	Severity         Severity                   `json:"severity"`
	BaseConfidence   float64                    `json:"baseConfidence"`
	ProgramID        string                     `json:"programId,omitempty"`
	InstructionRegex string                     `json:"instructionRegex,omitempty"`
	BehavioralRules  map[string]RuleConstraint  `json:"behavioralRules,omitempty"`
	AccountPattern   map[string]RuleConstraint  `json:"accountPattern,omitempty"`
	IsActive         bool                       `json:"isActive"`
}

// PatternMatch is one hit produced during scanning.
type PatternMatch struct {
	PatternID    string            `json:"patternId"`
	Name         string            `json:"name"`
	Kind         PatternKind       `json:"kind"`
	Severity     Severity          `json:"severity"`
	Confidence   float64           `json:"confidence"`
	Evidence     map[string]string `json:"evidence,omitempty"`
	MatchTimeMs  float64           `json:"matchTimeMs"`
}
