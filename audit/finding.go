package audit

// Severity classifies a Finding.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Level is a conformance tier. A, AA and AAA are cumulative; Advanced holds
// newer criteria whose real tier comes from a lookup table.
type Level string

const (
	LevelA        Level = "A"
	LevelAA       Level = "AA"
	LevelAAA      Level = "AAA"
	LevelAdvanced Level = "advanced"
	LevelUnknown  Level = "Unknown"
)

// Rank orders cumulative tiers: A=1, AA=2, AAA=3. Other levels rank 0.
func (l Level) Rank() int {
	switch l {
	case LevelA:
		return 1
	case LevelAA:
		return 2
	case LevelAAA:
		return 3
	}
	return 0
}

// Finding is a single detected issue or passed check.
type Finding struct {
	Type      string   `json:"type"`
	Criterion string   `json:"criterion,omitempty"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
	Value     *float64 `json:"value,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	Elements  []string `json:"elements,omitempty"`

	// Set when merged into an accessibility report.
	Level Level  `json:"level,omitempty"`
	Spec  string `json:"spec,omitempty"`
}

// Key groups findings: the criterion when present, the type otherwise.
func (f Finding) Key() string {
	if f.Criterion != "" {
		return f.Criterion
	}
	return f.Type
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
