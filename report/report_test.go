package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/pageaudit/audit"
)

func sampleVisit() *audit.Visit {
	v := audit.NewVisit("https://example.com")
	status := 200
	v.StatusCode = &status
	v.Headers = map[string]string{"content-type": "text/html"}
	v.ResponseTimeMS = audit.Float(123.4)
	v.Timing.LCP = audit.Float(1800)
	v.RedirectChain = []audit.Redirect{{From: "http://example.com", To: "https://example.com", Status: 301, Timestamp: time.Now()}}
	v.RedirectCount = 1
	v.SecurityHeaders = &audit.SecurityHeadersResult{
		Findings: []audit.Finding{{Type: "csp-missing", Severity: audit.SeverityWarning, Message: "No Content-Security-Policy header"}},
		Score:    80,
		Grade:    audit.GradeB,
	}
	v.Performance = &audit.PerformanceResult{Findings: []audit.Finding{}, Score: 100, Grade: audit.GradeA}
	v.SetError("mobile", "mobile: evaluate: target closed")
	v.Accessibility = &audit.AccessibilityReport{
		ByLevel: map[audit.Level]*audit.LevelResult{
			audit.LevelA: {Level: audit.LevelA, Score: 85, Grade: audit.GradeB},
		},
		Violations: []audit.Finding{{
			Type:      "image-alt",
			Criterion: "1.1.1",
			Severity:  audit.SeverityError,
			Message:   `1 image(s) without a text alternative <script>alert(1)</script>`,
			Elements:  []string{"html > body:nth-of-type(1) > img:nth-of-type(1)"},
			Level:     audit.LevelA,
			Spec:      "wcag21",
		}},
		Compliance:      map[string]bool{"wcag21_A": false, "wcag21_AA": false},
		ComplianceScore: 67,
		Summary: audit.Summary{
			TotalViolations: 1,
			ScoredLevels:    []audit.Level{audit.LevelA},
			Recommendations: []string{"Add meaningful alt text."},
		},
		Screenshots: []audit.Screenshot{{Criterion: "1.1.1", Selector: "img", PNG: []byte("\x89PNG")}},
	}
	return v
}

func TestDigest_IgnoresVolatileFields(t *testing.T) {
	a := sampleVisit()
	b := sampleVisit()
	b.ResponseTimeMS = audit.Float(999)
	b.Timing.LCP = audit.Float(4200)
	b.Performance.Score = 60
	b.RedirectChain[0].Timestamp = time.Now().Add(time.Hour)
	b.Accessibility.Screenshots = nil

	da, err := Digest(a)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	db, err := Digest(b)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if da != db {
		t.Fatalf("digests differ: %s vs %s", da, db)
	}
	if !strings.HasPrefix(da, "sha256:") || len(da) != len("sha256:")+64 {
		t.Fatalf("digest format: %s", da)
	}
}

func TestDigest_ChangesWithFindings(t *testing.T) {
	a := sampleVisit()
	b := sampleVisit()
	status := 404
	b.StatusCode = &status

	da, _ := Digest(a)
	db, _ := Digest(b)
	if da == db {
		t.Fatal("status change should change the digest")
	}
}

func TestNewAndVerify(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r, err := New("run-1", start, start.Add(2*time.Second), sampleVisit())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if r.URL != "https://example.com" || r.Duration() != 2*time.Second {
		t.Fatalf("got %+v", r)
	}
	ok, err := r.Verify()
	if err != nil || !ok {
		t.Fatalf("verify: %v %v", ok, err)
	}

	r.Visit.SetError("http", "boom")
	if ok, _ := r.Verify(); ok {
		t.Fatal("verify should fail after mutation")
	}
	if got := r.Failed(); len(got) != 2 || got[0] != "http" {
		t.Fatalf("failed: %v", got)
	}
}

func TestNew_NilVisit(t *testing.T) {
	if _, err := New("x", time.Now(), time.Now(), nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestJSON_RoundTrip(t *testing.T) {
	r, _ := New("run-1", time.Now(), time.Now(), sampleVisit())
	var buf bytes.Buffer
	if err := JSON(&buf, r); err != nil {
		t.Fatalf("json: %v", err)
	}
	var back Report
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Digest != r.Digest || back.Visit.Errors["mobile"] == "" {
		t.Fatalf("got %+v", back)
	}
	if ok, err := back.Verify(); err != nil || !ok {
		t.Fatalf("decoded report does not verify: %v %v", ok, err)
	}
}

func TestHTML(t *testing.T) {
	r, _ := New("run-1", time.Now(), time.Now(), sampleVisit())
	var buf bytes.Buffer
	if err := HTML(&buf, r); err != nil {
		t.Fatalf("html: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"<!doctype html>",
		"Audit of https://example.com",
		"security-headers",
		"csp-missing",
		"mobile: evaluate: target closed",
		"wcag21_A",
		"data:image/png;base64,",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q", want)
		}
	}
	if strings.Contains(out, "<script>alert(1)</script>") {
		t.Fatal("page text was not escaped")
	}
}

func TestMarkdown(t *testing.T) {
	r, _ := New("run-1", time.Now(), time.Now(), sampleVisit())
	var buf bytes.Buffer
	if err := Markdown(&buf, r); err != nil {
		t.Fatalf("markdown: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "# Audit of https://example.com") {
		t.Fatalf("heading: %q", out[:min(len(out), 60)])
	}
	if !strings.Contains(out, "security-headers") || strings.Count(out, "|") < 10 {
		t.Errorf("score table missing:\n%s", out)
	}
	if strings.Contains(out, "data:image/png") {
		t.Error("markdown should not embed screenshots")
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"": FormatJSON, "JSON": FormatJSON, "html": FormatHTML, "md": FormatMarkdown}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q): got %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Error("expected error for pdf")
	}
}
