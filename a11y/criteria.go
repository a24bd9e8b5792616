// Package a11y implements the accessibility audits: one LevelAudit per
// conformance level (A, AA, AAA and the WCAG 2.2 advanced tier), each a
// static rule set applied to the serialised DOM, and the Suite that runs
// the enabled levels in isolation and merges them into one report with
// cumulative compliance flags.
package a11y

import (
	"github.com/hazyhaar/pageaudit/audit"
)

// Specification identifiers used in compliance keys.
const (
	SpecWCAG21 = "wcag21"
	SpecWCAG22 = "wcag22"
)

// CriteriaLevels maps a success criterion to its conformance level.
type CriteriaLevels map[string]audit.Level

// NewCriteriaLevels returns the table for criteria added in WCAG 2.2. The
// advanced tier stamps its findings through it.
func NewCriteriaLevels() CriteriaLevels {
	return CriteriaLevels{
		"2.4.11": audit.LevelAA,
		"2.4.12": audit.LevelAAA,
		"2.4.13": audit.LevelAAA,
		"2.5.7":  audit.LevelAA,
		"2.5.8":  audit.LevelAA,
		"3.2.6":  audit.LevelA,
		"3.3.7":  audit.LevelA,
		"3.3.8":  audit.LevelAA,
		"3.3.9":  audit.LevelAAA,
	}
}

// Lookup returns the level of criterion, or audit.LevelUnknown.
func (c CriteriaLevels) Lookup(criterion string) audit.Level {
	if l, ok := c[criterion]; ok {
		return l
	}
	return audit.LevelUnknown
}

// SpecOf reports which WCAG version (wcag21 or wcag22) introduced criterion.
func (c CriteriaLevels) SpecOf(criterion string) string {
	if _, ok := c[criterion]; ok {
		return SpecWCAG22
	}
	return SpecWCAG21
}

// canonical is the merge and reporting order of levels.
var canonical = []audit.Level{audit.LevelA, audit.LevelAA, audit.LevelAAA, audit.LevelAdvanced}

// AllLevels returns every supported level in canonical order.
func AllLevels() []audit.Level {
	return append([]audit.Level(nil), canonical...)
}

// ParseLevel accepts "A", "AA", "AAA" and "advanced" (case-insensitive for
// the latter).
func ParseLevel(s string) (audit.Level, bool) {
	switch s {
	case "A", "a":
		return audit.LevelA, true
	case "AA", "aa":
		return audit.LevelAA, true
	case "AAA", "aaa":
		return audit.LevelAAA, true
	case "advanced", "Advanced", "ADVANCED", "wcag22":
		return audit.LevelAdvanced, true
	}
	return "", false
}

// normalizeLevels drops duplicates and unsupported levels and returns the
// rest in canonical order.
func normalizeLevels(levels []audit.Level) []audit.Level {
	seen := make(map[audit.Level]bool, len(levels))
	for _, l := range levels {
		seen[l] = true
	}
	out := make([]audit.Level, 0, len(canonical))
	for _, l := range canonical {
		if seen[l] {
			out = append(out, l)
		}
	}
	return out
}
