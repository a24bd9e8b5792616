package a11y

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/pageaudit/audit"
	"github.com/hazyhaar/pageaudit/page"
	"github.com/hazyhaar/pageaudit/page/pagetest"
)

const goodPage = `<!doctype html>
<html lang="en">
<head>
<title>Example</title>
<meta name="viewport" content="width=device-width, initial-scale=1">
</head>
<body>
<a href="#main">Skip to content</a>
<main id="main">
<h1>Welcome</h1>
<section><h2>News</h2><p>Read the <a href="/news">latest news</a>.</p></section>
<img src="logo.png" alt="Company logo">
<form><label for="q">Search</label><input id="q" type="search" name="q"><button type="submit">Go</button></form>
</main>
<footer><a href="/contact">Contact us</a></footer>
</body>
</html>`

const badPageA = `<html><head></head><body>
<div id="x"></div><div id="x"></div>
<img src="a.png">
<input type="text" name="q">
<button></button>
</body></html>`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func criteriaOf(fs []audit.Finding) []string {
	var out []string
	for _, f := range fs {
		out = append(out, f.Criterion)
	}
	sort.Strings(out)
	return out
}

func mustLevel(t *testing.T, level audit.Level, src string) *audit.LevelResult {
	t.Helper()
	res, err := EvaluateLevel(level, src)
	if err != nil {
		t.Fatalf("evaluate %s: %v", level, err)
	}
	return res
}

func TestEvaluateLevel_GoodPagePassesEverything(t *testing.T) {
	for _, level := range AllLevels() {
		res := mustLevel(t, level, goodPage)
		if len(res.Violations) != 0 || len(res.Warnings) != 0 {
			t.Errorf("%s: violations %v, warnings %v", level, criteriaOf(res.Violations), criteriaOf(res.Warnings))
		}
		if len(res.Passes) != len(rulesFor(level)) {
			t.Errorf("%s: passes got %d, want %d", level, len(res.Passes), len(rulesFor(level)))
		}
		if res.Score != 100 || res.Grade != audit.GradeA {
			t.Errorf("%s: got %d/%s", level, res.Score, res.Grade)
		}
	}
}

func TestEvaluateLevel_A(t *testing.T) {
	res := mustLevel(t, audit.LevelA, badPageA)

	want := []string{"1.1.1", "1.3.1", "2.4.1", "2.4.2", "3.1.1", "4.1.1", "4.1.2"}
	if got := criteriaOf(res.Violations); !reflect.DeepEqual(got, want) {
		t.Fatalf("violations: got %v, want %v", got, want)
	}
	if res.Score != 5 || res.Grade != audit.GradeF {
		t.Fatalf("score: got %d/%s, want 5/F", res.Score, res.Grade)
	}
	if len(res.Passes) != 0 {
		t.Fatalf("passes: got %v", criteriaOf(res.Passes))
	}
	for _, f := range res.Violations {
		if f.Criterion == "1.1.1" && (len(f.Elements) != 1 || !strings.Contains(f.Elements[0], "img:nth-of-type(1)")) {
			t.Fatalf("image elements: got %v", f.Elements)
		}
	}
}

func TestEvaluateLevel_AA(t *testing.T) {
	src := `<html lang="en"><head><title>t</title>
<meta name="viewport" content="width=device-width, user-scalable=no">
<style>a:focus { color: red; outline: none; }</style></head>
<body><main><h1>One</h1><h3>Three</h3><h2></h2>
<label>Mail <input type="email" name="mail"></label>
<span lang="">x</span></main></body></html>`
	res := mustLevel(t, audit.LevelAA, src)

	if got, want := criteriaOf(res.Violations), []string{"1.4.4", "2.4.6", "2.4.7", "3.1.2"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("violations: got %v, want %v", got, want)
	}
	if got, want := criteriaOf(res.Warnings), []string{"1.3.5", "2.4.6"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("warnings: got %v, want %v", got, want)
	}
	// 10 + 10 + 10 + 10 + 5; headings charged once at its largest penalty.
	if res.Score != 55 {
		t.Fatalf("score: got %d, want 55", res.Score)
	}
}

func TestEvaluateLevel_AAA(t *testing.T) {
	src := `<html lang="en"><head><title>t</title>
<meta http-equiv="refresh" content="5; url=/next">
<style>p { text-align: justify; }</style></head>
<body><section><p>Text</p></section><a href="/x">Click here</a></body></html>`
	res := mustLevel(t, audit.LevelAAA, src)

	if got, want := criteriaOf(res.Violations), []string{"2.2.4", "2.4.9"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("violations: got %v, want %v", got, want)
	}
	if got, want := criteriaOf(res.Warnings), []string{"1.4.8", "2.4.10"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("warnings: got %v, want %v", got, want)
	}
}

func TestEvaluateLevel_InstantRedirectIsNotAnInterruption(t *testing.T) {
	src := `<html lang="en"><head><title>t</title><meta http-equiv="refresh" content="0; url=/next"></head><body></body></html>`
	res := mustLevel(t, audit.LevelAAA, src)
	for _, f := range res.Violations {
		if f.Criterion == "2.2.4" {
			t.Fatalf("unexpected meta refresh violation: %s", f.Message)
		}
	}
}

func TestEvaluateLevel_Advanced(t *testing.T) {
	src := `<html lang="en"><head><title>t</title></head><body>
<form><input type="password" autocomplete="off" name="pw">
<button style="width:16px;height:16px">x</button></form>
</body></html>`
	res := mustLevel(t, audit.LevelAdvanced, src)

	if got, want := criteriaOf(res.Violations), []string{"2.5.8", "3.3.8"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("violations: got %v, want %v", got, want)
	}
	if got, want := criteriaOf(res.Warnings), []string{"3.2.6"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("warnings: got %v, want %v", got, want)
	}
}

func TestCSSPath(t *testing.T) {
	d, err := parseDocument(`<html><body><div><p>a</p><p id="b">b</p><p>c</p></div></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	ps := d.all(atom.P)
	if got := d.cssPath(ps[2]); got != "html > body:nth-of-type(1) > div:nth-of-type(1) > p:nth-of-type(3)" {
		t.Fatalf("path: got %q", got)
	}
	if got := d.cssPath(ps[1]); got != "#b" {
		t.Fatalf("id path: got %q", got)
	}
}

func TestSnippet(t *testing.T) {
	if got := snippet("<b>bold</b> &amp; <script>x()</script>text"); got != "bold & text" {
		t.Fatalf("got %q", got)
	}
	long := strings.Repeat("a", 200)
	if got := []rune(snippet(long)); len(got) != snippetLen {
		t.Fatalf("length: got %d", len(got))
	}
}

func TestCriteriaLevels(t *testing.T) {
	c := NewCriteriaLevels()
	tests := map[string]audit.Level{
		"2.4.11": audit.LevelAA,
		"2.4.13": audit.LevelAAA,
		"3.2.6":  audit.LevelA,
		"2.5.8":  audit.LevelAA,
		"9.9.9":  audit.LevelUnknown,
	}
	for crit, want := range tests {
		if got := c.Lookup(crit); got != want {
			t.Errorf("Lookup(%s): got %q, want %q", crit, got, want)
		}
	}
	if c.SpecOf("1.1.1") != SpecWCAG21 || c.SpecOf("2.5.8") != SpecWCAG22 {
		t.Fatal("spec lookup")
	}
}

// --- merge ---

func finding(crit string, sev audit.Severity, elements ...string) audit.Finding {
	return audit.Finding{Type: "t-" + crit, Criterion: crit, Severity: sev, Message: "m " + crit, Elements: elements}
}

func clean(level audit.Level, passes int) *audit.LevelResult {
	lr := &audit.LevelResult{Level: level, Score: 100, Grade: audit.GradeA}
	for i := 0; i < passes; i++ {
		lr.Passes = append(lr.Passes, finding(fmt.Sprintf("0.0.%d", i), audit.SeverityInfo))
	}
	return lr
}

func allLevels() []audit.Level {
	return []audit.Level{audit.LevelA, audit.LevelAA, audit.LevelAAA, audit.LevelAdvanced}
}

func TestMerge_NoLevels(t *testing.T) {
	rep := Merge(nil, nil, nil)
	if len(rep.Compliance) != 6 {
		t.Fatalf("flags: got %v", rep.Compliance)
	}
	for k, v := range rep.Compliance {
		if v {
			t.Errorf("%s: got true with nothing scored", k)
		}
	}
	if rep.ComplianceScore != 0 {
		t.Fatalf("score: got %d", rep.ComplianceScore)
	}
	if len(rep.Summary.ScoredLevels) != 0 || len(rep.Summary.Recommendations) != 0 {
		t.Fatalf("summary: got %+v", rep.Summary)
	}
}

func TestMerge_AllClean(t *testing.T) {
	results := map[audit.Level]*audit.LevelResult{
		audit.LevelA:        clean(audit.LevelA, 2),
		audit.LevelAA:       clean(audit.LevelAA, 1),
		audit.LevelAAA:      clean(audit.LevelAAA, 1),
		audit.LevelAdvanced: clean(audit.LevelAdvanced, 1),
	}
	rep := Merge(results, allLevels(), nil)
	for k, v := range rep.Compliance {
		if !v {
			t.Errorf("%s: got false", k)
		}
	}
	if rep.ComplianceScore != 100 {
		t.Fatalf("score: got %d", rep.ComplianceScore)
	}
}

func TestMerge_CumulativeFlags(t *testing.T) {
	aa := clean(audit.LevelAA, 0)
	aa.Violations = []audit.Finding{finding("2.4.7", audit.SeverityError)}
	results := map[audit.Level]*audit.LevelResult{
		audit.LevelA:   clean(audit.LevelA, 1),
		audit.LevelAA:  aa,
		audit.LevelAAA: clean(audit.LevelAAA, 1),
	}
	rep := Merge(results, []audit.Level{audit.LevelA, audit.LevelAA, audit.LevelAAA}, nil)

	want := map[string]bool{
		"wcag21_A": true, "wcag21_AA": false, "wcag21_AAA": false,
		"wcag22_A": false, "wcag22_AA": false, "wcag22_AAA": false,
	}
	if !reflect.DeepEqual(rep.Compliance, want) {
		t.Fatalf("flags: got %v, want %v", rep.Compliance, want)
	}
	if rep.Violations[0].Level != audit.LevelAA || rep.Violations[0].Spec != SpecWCAG21 {
		t.Fatalf("stamp: got %q/%q", rep.Violations[0].Level, rep.Violations[0].Spec)
	}
}

func TestMerge_AdvancedStampsThroughTable(t *testing.T) {
	adv := clean(audit.LevelAdvanced, 1)
	adv.Violations = []audit.Finding{finding("2.5.8", audit.SeverityError, "#b")}
	results := map[audit.Level]*audit.LevelResult{
		audit.LevelA:        clean(audit.LevelA, 1),
		audit.LevelAA:       clean(audit.LevelAA, 1),
		audit.LevelAAA:      clean(audit.LevelAAA, 1),
		audit.LevelAdvanced: adv,
	}
	rep := Merge(results, allLevels(), nil)

	v := rep.Violations[0]
	if v.Level != audit.LevelAA || v.Spec != SpecWCAG22 {
		t.Fatalf("stamp: got %q/%q", v.Level, v.Spec)
	}
	want := map[string]bool{
		"wcag21_A": true, "wcag21_AA": false, "wcag21_AAA": false,
		"wcag22_A": true, "wcag22_AA": false, "wcag22_AAA": false,
	}
	if !reflect.DeepEqual(rep.Compliance, want) {
		t.Fatalf("flags: got %v, want %v", rep.Compliance, want)
	}
}

func TestMerge_AdvancedLevelAViolationBlocksAllAAFlags(t *testing.T) {
	adv := clean(audit.LevelAdvanced, 1)
	adv.Violations = []audit.Finding{finding("3.2.6", audit.SeverityError, "#help")}
	results := map[audit.Level]*audit.LevelResult{
		audit.LevelA:        clean(audit.LevelA, 1),
		audit.LevelAA:       clean(audit.LevelAA, 1),
		audit.LevelAAA:      clean(audit.LevelAAA, 1),
		audit.LevelAdvanced: adv,
	}
	rep := Merge(results, allLevels(), nil)

	if got := rep.Violations[0].Level; got != audit.LevelA {
		t.Fatalf("stamp: got %q, want A", got)
	}
	for k, v := range rep.Compliance {
		if v {
			t.Errorf("%s: got true with a level-A violation", k)
		}
	}
}

func TestMerge_UnknownCriterion(t *testing.T) {
	adv := clean(audit.LevelAdvanced, 0)
	adv.Warnings = []audit.Finding{finding("9.9.9", audit.SeverityWarning)}
	rep := Merge(map[audit.Level]*audit.LevelResult{audit.LevelAdvanced: adv}, []audit.Level{audit.LevelAdvanced}, nil)
	if rep.Warnings[0].Level != audit.LevelUnknown {
		t.Fatalf("level: got %q", rep.Warnings[0].Level)
	}
}

func TestMerge_MissingLevelIsUnscored(t *testing.T) {
	results := map[audit.Level]*audit.LevelResult{
		audit.LevelA:   clean(audit.LevelA, 1),
		audit.LevelAAA: clean(audit.LevelAAA, 1),
	}
	rep := Merge(results, []audit.Level{audit.LevelA, audit.LevelAA, audit.LevelAAA}, nil)

	if !reflect.DeepEqual(rep.Summary.UnscoredLevels, []audit.Level{audit.LevelAA}) {
		t.Fatalf("unscored: got %v", rep.Summary.UnscoredLevels)
	}
	if !rep.Compliance["wcag21_A"] {
		t.Fatal("wcag21_A should hold")
	}
	if rep.Compliance["wcag21_AA"] || rep.Compliance["wcag21_AAA"] {
		t.Fatalf("flags above the gap must be false: %v", rep.Compliance)
	}
	if _, ok := rep.ByLevel[audit.LevelAA]; ok {
		t.Fatal("unscored level must not appear in by_level")
	}
}

func TestMerge_OrderIndependentAndIdempotent(t *testing.T) {
	a := clean(audit.LevelA, 2)
	a.Violations = []audit.Finding{
		finding("1.1.1", audit.SeverityError, "#a", "#b"),
		finding("4.1.2", audit.SeverityError, "#c"),
	}
	aa := clean(audit.LevelAA, 1)
	aa.Warnings = []audit.Finding{finding("1.3.5", audit.SeverityWarning, "#d")}
	results := map[audit.Level]*audit.LevelResult{audit.LevelA: a, audit.LevelAA: aa}

	first := Merge(results, []audit.Level{audit.LevelA, audit.LevelAA}, nil)
	reordered := Merge(results, []audit.Level{audit.LevelAA, audit.LevelA, audit.LevelAA}, nil)
	again := Merge(results, []audit.Level{audit.LevelA, audit.LevelAA}, nil)

	if !reflect.DeepEqual(first, reordered) {
		t.Fatal("merge depends on level order")
	}
	if !reflect.DeepEqual(first, again) {
		t.Fatal("merge is not idempotent")
	}
	if a.Violations[0].Level != "" {
		t.Fatal("merge mutated its input")
	}
}

func TestMerge_ComplianceScore(t *testing.T) {
	a := clean(audit.LevelA, 3)
	a.Warnings = []audit.Finding{finding("2.4.6", audit.SeverityWarning)}
	rep := Merge(map[audit.Level]*audit.LevelResult{audit.LevelA: a}, []audit.Level{audit.LevelA}, nil)
	if rep.ComplianceScore != 75 {
		t.Fatalf("got %d, want 75", rep.ComplianceScore)
	}

	a.Violations = []audit.Finding{finding("1.1.1", audit.SeverityError), finding("2.4.2", audit.SeverityError)}
	rep = Merge(map[audit.Level]*audit.LevelResult{audit.LevelA: a}, []audit.Level{audit.LevelA}, nil)
	// 3 / 6
	if rep.ComplianceScore != 50 {
		t.Fatalf("got %d, want 50", rep.ComplianceScore)
	}
}

func TestSummary_PriorityIssuesAndRecommendations(t *testing.T) {
	a := clean(audit.LevelA, 0)
	a.Violations = []audit.Finding{
		finding("1.1.1", audit.SeverityError, "#1"),
		finding("1.3.1", audit.SeverityError, "#1", "#2", "#3"),
		finding("2.4.1", audit.SeverityError),
		finding("2.4.2", audit.SeverityError),
		finding("3.1.1", audit.SeverityError, "html"),
		finding("4.1.1", audit.SeverityError, "#x", "#y"),
		finding("4.1.2", audit.SeverityError, "#z"),
	}
	aa := clean(audit.LevelAA, 0)
	aa.Violations = []audit.Finding{finding("2.4.7", audit.SeverityError, "#1", "#2", "#3", "#4")}
	rep := Merge(map[audit.Level]*audit.LevelResult{audit.LevelA: a, audit.LevelAA: aa},
		[]audit.Level{audit.LevelA, audit.LevelAA}, nil)

	sum := rep.Summary
	if sum.TotalViolations != 8 {
		t.Fatalf("total: got %d", sum.TotalViolations)
	}
	if len(sum.PriorityIssues) != maxPriorityIssues {
		t.Fatalf("priority: got %d", len(sum.PriorityIssues))
	}
	want := []string{"1.3.1", "4.1.1", "1.1.1", "2.4.1", "2.4.2"}
	for i, f := range sum.PriorityIssues {
		if f.Criterion != want[i] {
			t.Fatalf("priority[%d]: got %s, want %s", i, f.Criterion, want[i])
		}
		if f.Level != audit.LevelA {
			t.Fatalf("priority[%d] level: got %s", i, f.Level)
		}
	}
	if sum.ByCriterion[0].Criterion != "2.4.7" || sum.ByCriterion[0].Count != 4 {
		t.Fatalf("by criterion: got %+v", sum.ByCriterion[0])
	}
	if len(sum.Recommendations) != 8 || sum.Recommendations[0] != recommendations["2.4.7"] {
		t.Fatalf("recommendations: got %v", sum.Recommendations)
	}
}

func TestSummary_GenericRecommendation(t *testing.T) {
	adv := clean(audit.LevelAdvanced, 0)
	adv.Violations = []audit.Finding{finding("9.9.9", audit.SeverityError, "#a", "#b")}
	rep := Merge(map[audit.Level]*audit.LevelResult{audit.LevelAdvanced: adv}, []audit.Level{audit.LevelAdvanced}, nil)

	recs := rep.Summary.Recommendations
	if len(recs) != 1 || !strings.Contains(recs[0], "9.9.9") {
		t.Fatalf("got %v", recs)
	}
	if rep.Compliance["wcag22_A"] {
		t.Fatal("unknown violation must block wcag22 flags")
	}
}

// --- suite ---

func TestSuite_Clean(t *testing.T) {
	ev := pagetest.New()
	ev.HTML = goodPage
	s := NewSuite(ev, Options{Levels: allLevels(), Logger: quietLogger()})

	v := audit.NewVisit("https://example.com")
	if err := s.Run(context.Background(), v); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(v.Errors) != 0 {
		t.Fatalf("errors: %v", v.Errors)
	}
	rep := v.Accessibility
	if rep == nil {
		t.Fatal("no report")
	}
	if len(rep.Summary.ScoredLevels) != 4 || rep.ComplianceScore != 100 {
		t.Fatalf("got scored=%v score=%d", rep.Summary.ScoredLevels, rep.ComplianceScore)
	}
	if !rep.Compliance["wcag22_AAA"] {
		t.Fatalf("flags: %v", rep.Compliance)
	}
	if len(v.AccessibilityLevels) != 4 {
		t.Fatalf("level results: got %d", len(v.AccessibilityLevels))
	}
}

func TestSuite_NoLevels(t *testing.T) {
	ev := pagetest.New()
	s := NewSuite(ev, Options{Logger: quietLogger()})
	v := audit.NewVisit("https://example.com")
	s.Run(context.Background(), v)

	if v.Accessibility == nil {
		t.Fatal("report expected even with no levels")
	}
	for k, ok := range v.Accessibility.Compliance {
		if ok {
			t.Fatalf("%s: got true", k)
		}
	}
	if len(ev.Evals()) != 0 {
		t.Fatalf("no script should run, got %d", len(ev.Evals()))
	}
}

// failingNth fails the n-th (1-based) Evaluate call.
type failingNth struct {
	*pagetest.Fake
	n     int
	calls int
	panic bool
}

func (f *failingNth) Evaluate(ctx context.Context, script string, args ...any) (json.RawMessage, error) {
	f.calls++
	if f.calls == f.n {
		if f.panic {
			panic("renderer crashed")
		}
		return nil, errors.New("target closed")
	}
	return f.Fake.Evaluate(ctx, script, args...)
}

func TestSuite_SubAuditFailureLeavesGap(t *testing.T) {
	for _, panics := range []bool{false, true} {
		t.Run(fmt.Sprintf("panic=%v", panics), func(t *testing.T) {
			fake := pagetest.New()
			fake.HTML = goodPage
			ev := &failingNth{Fake: fake, n: 2, panic: panics}
			s := NewSuite(ev, Options{
				Levels: []audit.Level{audit.LevelA, audit.LevelAA, audit.LevelAAA},
				Logger: quietLogger(),
			})
			v := audit.NewVisit("https://example.com")
			if err := s.Run(context.Background(), v); err != nil {
				t.Fatalf("run: %v", err)
			}

			if _, ok := v.Errors[AuditName(audit.LevelAA)]; !ok {
				t.Fatalf("errors: got %v", v.Errors)
			}
			if len(v.Errors) != 1 {
				t.Fatalf("only AA should fail: %v", v.Errors)
			}
			rep := v.Accessibility
			if !reflect.DeepEqual(rep.Summary.UnscoredLevels, []audit.Level{audit.LevelAA}) {
				t.Fatalf("unscored: got %v", rep.Summary.UnscoredLevels)
			}
			if !rep.Compliance["wcag21_A"] || rep.Compliance["wcag21_AA"] || rep.Compliance["wcag21_AAA"] {
				t.Fatalf("flags: %v", rep.Compliance)
			}
		})
	}
}

func TestSuite_ObserverSeesEveryLevel(t *testing.T) {
	ev := pagetest.New()
	ev.HTML = goodPage
	var seen []string
	s := NewSuite(ev, Options{
		Levels:   []audit.Level{audit.LevelAA, audit.LevelA},
		Logger:   quietLogger(),
		Observer: func(name string, _ time.Duration, _ error) { seen = append(seen, name) },
	})
	s.Run(context.Background(), audit.NewVisit("https://example.com"))
	if !reflect.DeepEqual(seen, []string{"a11y-A", "a11y-AA"}) {
		t.Fatalf("got %v", seen)
	}
}

func violations(n int) []audit.Finding {
	out := make([]audit.Finding, n)
	for i := range out {
		out[i] = finding(fmt.Sprintf("1.1.%d", i), audit.SeverityError, fmt.Sprintf("#e%d", i))
	}
	return out
}

func TestCapture_Cap(t *testing.T) {
	ev := pagetest.New()
	s := NewSuite(ev, Options{Screenshots: true, Logger: quietLogger()})

	vs := append([]audit.Finding{finding("2.4.1", audit.SeverityError)}, violations(12)...)
	shots := s.capture(context.Background(), vs)

	if len(shots) != DefaultScreenshotCap {
		t.Fatalf("shots: got %d, want %d", len(shots), DefaultScreenshotCap)
	}
	if ev.Screenshots() != DefaultScreenshotCap {
		t.Fatalf("screenshot calls: got %d", ev.Screenshots())
	}
	if shots[0].Selector != "#e0" {
		t.Fatalf("violation without elements should be skipped, first selector %q", shots[0].Selector)
	}
	clears := 0
	for _, sc := range ev.Evals() {
		if sc == page.ClearHighlightScript {
			clears++
		}
	}
	if clears != DefaultScreenshotCap {
		t.Fatalf("highlight cleared %d times", clears)
	}
}

func TestCapture_FailureRecordedPerShot(t *testing.T) {
	ev := pagetest.New()
	ev.ShotFunc = func(n int) ([]byte, error) {
		if n == 1 {
			return nil, errors.New("capture failed")
		}
		return []byte("png"), nil
	}
	s := NewSuite(ev, Options{Screenshots: true, ScreenshotCap: 3, Logger: quietLogger()})
	shots := s.capture(context.Background(), violations(3))

	if len(shots) != 3 {
		t.Fatalf("shots: got %d", len(shots))
	}
	if shots[1].Error == "" || shots[1].PNG != nil {
		t.Fatalf("second shot: got %+v", shots[1])
	}
	if shots[0].Error != "" || string(shots[2].PNG) != "png" {
		t.Fatalf("other shots: %+v / %+v", shots[0], shots[2])
	}
}

func TestCapture_HighlightFailure(t *testing.T) {
	ev := pagetest.New().Fail(page.HighlightScript, errors.New("no such element"))
	s := NewSuite(ev, Options{Screenshots: true, Logger: quietLogger()})
	shots := s.capture(context.Background(), violations(2))

	if len(shots) != 2 || shots[0].Error == "" {
		t.Fatalf("got %+v", shots)
	}
	if ev.Screenshots() != 0 {
		t.Fatalf("screenshot taken after highlight failure")
	}
}
