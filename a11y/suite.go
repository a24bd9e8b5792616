package a11y

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/hazyhaar/pageaudit/audit"
	"github.com/hazyhaar/pageaudit/page"
)

// SuiteName is the result key of the accessibility suite.
const SuiteName = "accessibility"

// DefaultScreenshotCap bounds screenshots per report.
const DefaultScreenshotCap = 10

// maxPriorityIssues is the number of level-A violations surfaced first.
const maxPriorityIssues = 5

// Options configures a Suite.
type Options struct {
	// Levels to run. Empty means none: the report is produced with every
	// compliance flag false.
	Levels []audit.Level

	Screenshots   bool
	ScreenshotCap int

	Logger   *slog.Logger
	Observer audit.Observer

	// Criteria overrides the advanced-tier level table.
	Criteria CriteriaLevels
}

// Suite runs the enabled level audits, each under its own Safe, and merges
// their results into Visit.Accessibility.
type Suite struct {
	ev       page.Evaluator
	levels   []audit.Level
	subs     []*audit.Safe
	criteria CriteriaLevels
	shots    bool
	shotCap  int
	logger   *slog.Logger
}

// NewSuite creates a suite over ev.
func NewSuite(ev page.Evaluator, opts Options) *Suite {
	s := &Suite{
		ev:       ev,
		levels:   normalizeLevels(opts.Levels),
		criteria: opts.Criteria,
		shots:    opts.Screenshots,
		shotCap:  opts.ScreenshotCap,
		logger:   opts.Logger,
	}
	if s.criteria == nil {
		s.criteria = NewCriteriaLevels()
	}
	if s.shotCap <= 0 {
		s.shotCap = DefaultScreenshotCap
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	for _, l := range s.levels {
		s.subs = append(s.subs, audit.Wrap(NewLevelAudit(l, ev),
			audit.WithSafeLogger(s.logger),
			audit.WithSafeObserver(opts.Observer)))
	}
	return s
}

func (s *Suite) Name() string { return SuiteName }

// Levels returns the enabled levels in canonical order.
func (s *Suite) Levels() []audit.Level {
	return append([]audit.Level(nil), s.levels...)
}

// Run never returns an error: level failures land in Visit.Errors under
// the level audit's name and the level is reported as unscored.
func (s *Suite) Run(ctx context.Context, v *audit.Visit) error {
	for _, sub := range s.subs {
		sub.Run(ctx, v)
	}

	rep := Merge(v.AccessibilityLevels, s.levels, s.criteria)
	if s.shots {
		rep.Screenshots = s.capture(ctx, rep.Violations)
	}
	v.Accessibility = rep

	s.logger.Debug("a11y: suite done",
		"url", v.URL,
		"scored", len(rep.Summary.ScoredLevels),
		"unscored", len(rep.Summary.UnscoredLevels),
		"violations", rep.Summary.TotalViolations,
		"compliance_score", rep.ComplianceScore)
	return nil
}

// Merge folds the level results of enabled levels into one report. Levels
// without a result are listed as unscored. The output depends only on the
// inputs, not on the order of enabled.
func Merge(results map[audit.Level]*audit.LevelResult, enabled []audit.Level, criteria CriteriaLevels) *audit.AccessibilityReport {
	if criteria == nil {
		criteria = NewCriteriaLevels()
	}
	rep := &audit.AccessibilityReport{
		ByLevel:    make(map[audit.Level]*audit.LevelResult),
		Violations: []audit.Finding{},
		Warnings:   []audit.Finding{},
		Passes:     []audit.Finding{},
		Summary: audit.Summary{
			ScoredLevels:    []audit.Level{},
			ByCriterion:     []audit.CriterionCount{},
			PriorityIssues:  []audit.Finding{},
			Recommendations: []string{},
		},
	}

	for _, level := range normalizeLevels(enabled) {
		lr := results[level]
		if lr == nil {
			rep.Summary.UnscoredLevels = append(rep.Summary.UnscoredLevels, level)
			continue
		}
		rep.ByLevel[level] = lr
		rep.Summary.ScoredLevels = append(rep.Summary.ScoredLevels, level)
		rep.Violations = append(rep.Violations, stamp(lr.Violations, level, criteria)...)
		rep.Warnings = append(rep.Warnings, stamp(lr.Warnings, level, criteria)...)
		rep.Passes = append(rep.Passes, stamp(lr.Passes, level, criteria)...)
	}

	rep.Compliance = compliance(rep)
	rep.ComplianceScore = complianceScore(len(rep.Passes), len(rep.Warnings), len(rep.Violations))
	summarize(rep)
	return rep
}

// stamp copies findings, setting the level and spec they were merged from.
func stamp(in []audit.Finding, level audit.Level, criteria CriteriaLevels) []audit.Finding {
	out := make([]audit.Finding, len(in))
	for i, f := range in {
		if level == audit.LevelAdvanced {
			f.Level = criteria.Lookup(f.Criterion)
			f.Spec = SpecWCAG22
		} else {
			f.Level = level
			f.Spec = criteria.SpecOf(f.Criterion)
		}
		out[i] = f
	}
	return out
}

// compliance computes the cumulative flags. A flag holds only when every
// level up to it was scored and no merged violation sits at or below it,
// whichever tier reported it. wcag22 flags also require the advanced tier
// to be scored and fail on any violation of unknown level.
func compliance(rep *audit.AccessibilityReport) map[string]bool {
	scored := make(map[audit.Level]bool, len(rep.ByLevel))
	for l := range rep.ByLevel {
		scored[l] = true
	}

	worst := math.MaxInt
	unknown := false
	for _, f := range rep.Violations {
		r := f.Level.Rank()
		if r == 0 {
			unknown = true
			continue
		}
		if r < worst {
			worst = r
		}
	}

	flags := make(map[string]bool, 6)
	prefixScored := true
	for _, l := range []audit.Level{audit.LevelA, audit.LevelAA, audit.LevelAAA} {
		prefixScored = prefixScored && scored[l]
		ok := prefixScored && worst > l.Rank()
		flags[SpecWCAG21+"_"+string(l)] = ok
		flags[SpecWCAG22+"_"+string(l)] = ok && scored[audit.LevelAdvanced] && !unknown
	}
	return flags
}

func complianceScore(passes, warnings, violations int) int {
	total := passes + warnings + violations
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(passes) / float64(total) * 100))
}

// weight is the number of elements a finding covers, at least one.
func weight(f audit.Finding) int {
	return max(1, len(f.Elements))
}

func summarize(rep *audit.AccessibilityReport) {
	sum := &rep.Summary
	sum.TotalViolations = len(rep.Violations)
	sum.TotalWarnings = len(rep.Warnings)
	sum.TotalPasses = len(rep.Passes)

	counts := make(map[string]*audit.CriterionCount)
	for _, f := range rep.Violations {
		key := f.Key()
		c, ok := counts[key]
		if !ok {
			c = &audit.CriterionCount{Criterion: key, Level: f.Level}
			counts[key] = c
		}
		c.Count += weight(f)
		if r := f.Level.Rank(); r > 0 && (c.Level.Rank() == 0 || r < c.Level.Rank()) {
			c.Level = f.Level
		}
	}
	for _, c := range counts {
		sum.ByCriterion = append(sum.ByCriterion, *c)
	}
	sort.Slice(sum.ByCriterion, func(i, j int) bool {
		a, b := sum.ByCriterion[i], sum.ByCriterion[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Criterion < b.Criterion
	})

	var levelA []audit.Finding
	for _, f := range rep.Violations {
		if f.Level == audit.LevelA {
			levelA = append(levelA, f)
		}
	}
	sort.SliceStable(levelA, func(i, j int) bool {
		wi, wj := weight(levelA[i]), weight(levelA[j])
		if wi != wj {
			return wi > wj
		}
		if levelA[i].Key() != levelA[j].Key() {
			return levelA[i].Key() < levelA[j].Key()
		}
		return levelA[i].Message < levelA[j].Message
	})
	if len(levelA) > maxPriorityIssues {
		levelA = levelA[:maxPriorityIssues]
	}
	sum.PriorityIssues = append(sum.PriorityIssues, levelA...)

	sum.Recommendations = recommend(sum.ByCriterion)
}

// recommend maps violated criteria, most frequent first, to advice. When
// no criterion is in the table, one generic line names the most frequent.
func recommend(byCriterion []audit.CriterionCount) []string {
	out := []string{}
	if len(byCriterion) == 0 {
		return out
	}
	for _, c := range byCriterion {
		if text, ok := recommendations[c.Criterion]; ok {
			out = append(out, text)
		}
	}
	if len(out) == 0 {
		top := byCriterion[0]
		out = append(out, fmt.Sprintf(
			"Start with criterion %s: it accounts for the most affected elements (%d).", top.Criterion, top.Count))
	}
	return out
}

var recommendations = map[string]string{
	"1.1.1":  "Add meaningful alt text to informative images and alt=\"\" to decorative ones.",
	"1.3.1":  "Associate every form control with a <label> or an aria-label.",
	"1.3.5":  "Add autocomplete tokens to fields that collect personal data.",
	"1.4.4":  "Remove user-scalable=no and maximum-scale from the viewport meta tag.",
	"1.4.8":  "Avoid justified text and use a line height of at least 1.5.",
	"2.2.4":  "Remove timed meta refresh or let users control it.",
	"2.4.1":  "Add a skip link to the main content or wrap it in a <main> landmark.",
	"2.4.2":  "Give the page a descriptive <title>.",
	"2.4.6":  "Fill empty headings and keep heading levels sequential.",
	"2.4.7":  "Keep a visible focus indicator; never set outline: none on :focus without a replacement.",
	"2.4.9":  "Replace generic link text such as \"click here\" with text naming the destination.",
	"2.4.10": "Introduce each section with a heading.",
	"2.4.11": "Ensure sticky headers and overlays do not cover the focused element.",
	"2.5.7":  "Provide a click or keyboard alternative for every drag interaction.",
	"2.5.8":  "Make interactive targets at least 24 by 24 CSS pixels.",
	"3.1.1":  "Set a valid lang attribute on the <html> element.",
	"3.1.2":  "Use valid language tags on elements that switch language.",
	"3.2.6":  "Offer help or contact details in a consistent place.",
	"3.3.8":  "Allow pasting and password managers on login fields.",
	"4.1.1":  "Make every id attribute unique.",
	"4.1.2":  "Give every button and link an accessible name.",
}

// capture takes one annotated screenshot per violation that names an
// element, up to the cap. Each failure is recorded on its entry.
func (s *Suite) capture(ctx context.Context, violations []audit.Finding) []audit.Screenshot {
	var shots []audit.Screenshot
	for _, f := range violations {
		if len(shots) >= s.shotCap {
			break
		}
		if len(f.Elements) == 0 {
			continue
		}
		shot := audit.Screenshot{Criterion: f.Key(), Selector: f.Elements[0]}
		png, err := s.screenshot(ctx, shot.Selector)
		if err != nil {
			shot.Error = err.Error()
			s.logger.Warn("a11y: screenshot failed",
				"criterion", shot.Criterion,
				"selector", shot.Selector,
				"error", err)
		} else {
			shot.PNG = png
		}
		shots = append(shots, shot)
	}
	return shots
}

func (s *Suite) screenshot(ctx context.Context, selector string) (png []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("a11y: screenshot panic: %v", r)
		}
	}()
	if _, err := s.ev.Evaluate(ctx, page.HighlightScript, selector); err != nil {
		return nil, fmt.Errorf("a11y: highlight %s: %w", selector, err)
	}
	defer s.ev.Evaluate(ctx, page.ClearHighlightScript)

	png, err = s.ev.Screenshot(ctx, page.ScreenshotOptions{})
	if err != nil {
		return nil, fmt.Errorf("a11y: screenshot: %w", err)
	}
	return png, nil
}
