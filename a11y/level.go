package a11y

import (
	"context"
	"fmt"

	"github.com/hazyhaar/pageaudit/audit"
	"github.com/hazyhaar/pageaudit/page"
)

// issue is one problem reported by a rule.
type issue struct {
	severity audit.Severity
	message  string
	elements []string
}

// rule is one success-criterion check. A rule reporting no issue produces
// a pass.
type rule struct {
	criterion   string
	typ         string
	pass        string
	penalty     int // charged once when any error issue is reported
	warnPenalty int // charged once when only warnings are reported
	check       func(d *document) []issue
}

func violation(msg string, elements []string) issue {
	return issue{severity: audit.SeverityError, message: msg, elements: elements}
}

func warning(msg string, elements []string) issue {
	return issue{severity: audit.SeverityWarning, message: msg, elements: elements}
}

// rulesFor returns the static rule set of level.
func rulesFor(level audit.Level) []rule {
	switch level {
	case audit.LevelA:
		return levelARules
	case audit.LevelAA:
		return levelAARules
	case audit.LevelAAA:
		return levelAAARules
	case audit.LevelAdvanced:
		return advancedRules
	}
	return nil
}

// AuditName returns the result key of the level audit.
func AuditName(level audit.Level) string {
	return "a11y-" + string(level)
}

// LevelAudit applies one level's rule set to the page DOM and stores a
// LevelResult under Visit.AccessibilityLevels[level].
type LevelAudit struct {
	level audit.Level
	ev    page.Evaluator
}

// NewLevelAudit creates the audit for level.
func NewLevelAudit(level audit.Level, ev page.Evaluator) *LevelAudit {
	return &LevelAudit{level: level, ev: ev}
}

func (l *LevelAudit) Name() string { return AuditName(l.level) }

// Level returns the audited level.
func (l *LevelAudit) Level() audit.Level { return l.level }

func (l *LevelAudit) Run(ctx context.Context, v *audit.Visit) error {
	rules := rulesFor(l.level)
	if rules == nil {
		return fmt.Errorf("a11y: unsupported level %q", l.level)
	}
	src, err := page.HTML(ctx, l.ev)
	if err != nil {
		return fmt.Errorf("a11y: %s: %w", l.level, err)
	}
	if src == "" {
		return fmt.Errorf("a11y: %s: empty document: %w", l.level, audit.ErrPrerequisite)
	}
	res, err := EvaluateLevel(l.level, src)
	if err != nil {
		return err
	}
	v.SetLevelResult(l.level, res)
	return nil
}

// EvaluateLevel applies the rules of level to an HTML document.
func EvaluateLevel(level audit.Level, src string) (*audit.LevelResult, error) {
	rules := rulesFor(level)
	if rules == nil {
		return nil, fmt.Errorf("a11y: unsupported level %q", level)
	}
	d, err := parseDocument(src)
	if err != nil {
		return nil, err
	}
	return applyRules(level, rules, d), nil
}

func applyRules(level audit.Level, rules []rule, d *document) *audit.LevelResult {
	var card audit.Scorecard
	res := &audit.LevelResult{
		Level:      level,
		Violations: []audit.Finding{},
		Warnings:   []audit.Finding{},
		Passes:     []audit.Finding{},
	}

	for _, r := range rules {
		issues := r.check(d)
		if len(issues) == 0 {
			res.Passes = append(res.Passes, audit.Finding{
				Type:      r.typ,
				Criterion: r.criterion,
				Severity:  audit.SeverityInfo,
				Message:   r.pass,
			})
			continue
		}
		for _, is := range issues {
			f := audit.Finding{
				Type:      r.typ,
				Criterion: r.criterion,
				Severity:  is.severity,
				Message:   is.message,
				Elements:  is.elements,
			}
			if is.severity == audit.SeverityError {
				card.Deduct(r.typ, r.penalty)
				res.Violations = append(res.Violations, f)
			} else {
				card.Deduct(r.typ, r.warnPenalty)
				res.Warnings = append(res.Warnings, f)
			}
		}
	}

	res.Score = card.Score()
	res.Grade = card.Grade()
	return res
}
