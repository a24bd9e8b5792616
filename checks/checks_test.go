package checks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/pageaudit/audit"
	"github.com/hazyhaar/pageaudit/page"
	"github.com/hazyhaar/pageaudit/page/pagetest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func findingTypes(fs []audit.Finding) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Type
	}
	return out
}

func TestPerformance_SlowLCPOnly(t *testing.T) {
	ev := pagetest.New().On(PerformanceScript, map[string]any{"lcp": 5000})
	v := audit.NewVisit("https://example.com")

	if err := NewPerformance(ev).Run(context.Background(), v); err != nil {
		t.Fatalf("run: %v", err)
	}
	if v.Timing.LCP == nil || *v.Timing.LCP != 5000 {
		t.Fatalf("timing lcp: got %v", v.Timing.LCP)
	}
	if v.Timing.FCP != nil {
		t.Fatalf("fcp should stay nil, got %v", *v.Timing.FCP)
	}

	res := v.Performance
	if res.Score != 60 {
		t.Fatalf("score: got %d, want 60", res.Score)
	}
	if res.Grade != audit.GradeD {
		t.Fatalf("grade: got %q, want D", res.Grade)
	}
	if len(res.Findings) != 1 {
		t.Fatalf("findings: got %v", findingTypes(res.Findings))
	}
	f := res.Findings[0]
	if f.Type != "lcp-slow" || f.Severity != audit.SeverityError {
		t.Fatalf("finding: got %s/%s", f.Type, f.Severity)
	}
	if f.Threshold == nil || *f.Threshold != 4000 {
		t.Fatalf("threshold: got %v", f.Threshold)
	}
}

func TestScorePerformance_Bands(t *testing.T) {
	tim := audit.Timing{
		LCP:  audit.Float(3000), // NI: 20
		FCP:  audit.Float(1000), // good
		CLS:  audit.Float(0.3),  // poor: 25
		INP:  audit.Float(150),  // good
		TTFB: audit.Float(1000), // NI: 5
	}
	res := ScorePerformance(tim)
	if res.Score != 50 {
		t.Fatalf("score: got %d, want 50", res.Score)
	}
	if len(res.Findings) != 3 {
		t.Fatalf("findings: got %v", findingTypes(res.Findings))
	}
	for _, f := range res.Findings {
		switch f.Type {
		case "lcp-slow", "ttfb-slow":
			if f.Severity != audit.SeverityWarning {
				t.Errorf("%s severity: got %s", f.Type, f.Severity)
			}
		case "cls-high":
			if f.Severity != audit.SeverityError {
				t.Errorf("cls severity: got %s", f.Severity)
			}
		default:
			t.Errorf("unexpected finding %s", f.Type)
		}
	}
}

func TestScorePerformance_NoMetrics(t *testing.T) {
	res := ScorePerformance(audit.Timing{})
	if res.Score != 100 || res.Grade != audit.GradeA {
		t.Fatalf("got %d/%s", res.Score, res.Grade)
	}
	if res.Findings == nil || len(res.Findings) != 0 {
		t.Fatalf("findings should be empty and non-nil: %v", res.Findings)
	}
}

func TestPerformance_InvalidPayload(t *testing.T) {
	ev := pagetest.New().On(PerformanceScript, map[string]any{"lcp": "slow"})
	v := audit.NewVisit("https://example.com")

	err := NewPerformance(ev).Run(context.Background(), v)
	if err == nil {
		t.Fatal("expected schema error")
	}
	if v.Performance != nil {
		t.Fatal("performance should stay unset on failure")
	}
}

func TestHTTP_RecordsNavigation(t *testing.T) {
	ev := pagetest.New()
	ev.Nav = &page.Navigation{
		FinalURL:   "https://www.example.com/",
		StatusCode: 200,
		Headers: map[string]string{
			"Content-Type":    "text/html",
			"X-Empty":         "  ",
			"Server":          "nginx",
			"Referrer-Policy": "no-referrer",
		},
		Redirects: []page.Redirect{
			{From: "http://example.com", To: "https://example.com/", Status: 301},
			{From: "https://example.com/", To: "https://www.example.com/", Status: 302},
		},
		TLS:     &page.TLS{Protocol: "TLS 1.3", Issuer: "Test CA"},
		Elapsed: 1500 * time.Microsecond,
	}
	v := audit.NewVisit("http://example.com")

	if err := NewHTTP(ev, page.NavigateOptions{}).Run(context.Background(), v); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !v.Loaded() || *v.StatusCode != 200 {
		t.Fatalf("status: got %v", v.StatusCode)
	}
	if v.FinalURL != "https://www.example.com/" {
		t.Fatalf("final url: got %q", v.FinalURL)
	}
	if v.RedirectCount != 2 || len(v.RedirectChain) != 2 {
		t.Fatalf("redirects: got %d/%d", v.RedirectCount, len(v.RedirectChain))
	}
	if v.RedirectChain[1].Status != 302 {
		t.Fatalf("second hop status: got %d", v.RedirectChain[1].Status)
	}
	if v.Headers["content-type"] != "text/html" {
		t.Fatalf("headers not normalised: %v", v.Headers)
	}
	if _, ok := v.Headers["x-empty"]; ok {
		t.Fatal("blank header should be dropped")
	}
	if v.ResponseTimeMS == nil || *v.ResponseTimeMS != 1.5 {
		t.Fatalf("response time: got %v", v.ResponseTimeMS)
	}
	if v.Security == nil || v.Security.Scheme != "https" || v.Security.Protocol != "TLS 1.3" {
		t.Fatalf("security: got %+v", v.Security)
	}
}

func TestHTTP_ErrorStatusIsNotAFailure(t *testing.T) {
	ev := pagetest.New()
	ev.Nav = &page.Navigation{FinalURL: "https://example.com/missing", StatusCode: 404}
	v := audit.NewVisit("https://example.com/missing")

	if err := NewHTTP(ev, page.NavigateOptions{}).Run(context.Background(), v); err != nil {
		t.Fatalf("run: %v", err)
	}
	if *v.StatusCode != 404 {
		t.Fatalf("status: got %d", *v.StatusCode)
	}
	if v.FinalURL != "" {
		t.Fatalf("final url should be empty when unchanged, got %q", v.FinalURL)
	}
}

func TestPipeline_NavigationTimeoutIsolated(t *testing.T) {
	ev := pagetest.New()
	ev.NavErr = fmt.Errorf("navigation: %w", context.DeadlineExceeded)

	p := audit.NewPipeline(audit.WithLogger(quietLogger())).Add(
		NewHTTP(ev, page.NavigateOptions{Timeout: time.Second}),
		NewSecurityHeaders(),
		NewContentWeight(ev),
	)
	v := p.Run(context.Background(), audit.NewVisit("https://slow.example"))

	if v.StatusCode != nil {
		t.Fatalf("status should be unset, got %d", *v.StatusCode)
	}
	if !strings.HasPrefix(v.Errors[HTTPName], "timeout: ") {
		t.Fatalf("http error: got %q", v.Errors[HTTPName])
	}
	if !v.Failed(SecurityHeadersName) {
		t.Fatal("security-headers should fail without headers")
	}
	if !v.Failed(ContentWeightName) {
		t.Fatal("content-weight should fail on the unscripted page")
	}
	if v.ContentWeight != nil || v.SecurityHeaders != nil {
		t.Fatal("failed audits must not write results")
	}
}

func TestSecurityHeaders_PrerequisiteMissing(t *testing.T) {
	v := audit.NewVisit("https://example.com")
	err := NewSecurityHeaders().Run(context.Background(), v)
	if !errors.Is(err, audit.ErrPrerequisite) {
		t.Fatalf("got %v, want ErrPrerequisite", err)
	}
}

func TestScoreSecurityHeaders(t *testing.T) {
	full := map[string]string{
		"strict-transport-security": "max-age=63072000",
		"content-security-policy":   "default-src 'self'",
		"x-content-type-options":    "nosniff",
		"x-frame-options":           "DENY",
		"referrer-policy":           "strict-origin",
	}

	tests := []struct {
		name    string
		headers map[string]string
		scheme  string
		score   int
		types   []string
	}{
		{"all present", full, "https", 100, nil},
		{"nothing over https", map[string]string{}, "https", 40,
			[]string{"hsts-missing", "csp-missing", "nosniff-missing", "framing-unprotected", "referrer-policy-missing"}},
		{"nothing over http", map[string]string{}, "http", 55,
			[]string{"csp-missing", "nosniff-missing", "framing-unprotected", "referrer-policy-missing"}},
		{"frame-ancestors satisfies framing", map[string]string{
			"content-security-policy": "frame-ancestors 'none'",
			"x-content-type-options":  "nosniff",
			"referrer-policy":         "no-referrer",
		}, "http", 100, nil},
		{"version disclosed", map[string]string{
			"content-security-policy": "default-src 'self'",
			"x-content-type-options":  "nosniff",
			"x-frame-options":         "SAMEORIGIN",
			"referrer-policy":         "no-referrer",
			"server":                  "nginx/1.18.0",
			"x-powered-by":            "PHP/8.1",
		}, "http", 95, []string{"version-disclosure", "version-disclosure"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ScoreSecurityHeaders(tt.headers, tt.scheme)
			if res.Score != tt.score {
				t.Fatalf("score: got %d, want %d (%v)", res.Score, tt.score, findingTypes(res.Findings))
			}
			got := findingTypes(res.Findings)
			if strings.Join(got, ",") != strings.Join(tt.types, ",") {
				t.Fatalf("findings: got %v, want %v", got, tt.types)
			}
		})
	}
}

func TestScoreContentWeight(t *testing.T) {
	m := ContentMetrics{
		TotalBytes:   2_000_000,
		HTMLBytes:    40_000,
		RequestCount: 120,
		DOMNodes:     300,
		ByType: map[string]audit.ResourceStat{
			"document": {Count: 1, Bytes: 40_000},
			"script":   {Count: 60, Bytes: 700_000},
			"image":    {Count: 59, Bytes: 1_260_000},
		},
	}
	res := ScoreContentWeight(m)

	// page-weight NI 15, request-count poor 15, js-weight NI 10, image-weight NI 5.
	if res.Score != 55 {
		t.Fatalf("score: got %d, want 55 (%v)", res.Score, findingTypes(res.Findings))
	}
	want := "page-weight,request-count,js-weight,image-weight"
	if got := strings.Join(findingTypes(res.Findings), ","); got != want {
		t.Fatalf("findings: got %s, want %s", got, want)
	}
	pw := res.Findings[0]
	if len(pw.Elements) != 3 || !strings.HasPrefix(pw.Elements[0], "image:") {
		t.Fatalf("page-weight breakdown: got %v", pw.Elements)
	}
	if res.Findings[1].Severity != audit.SeverityError {
		t.Fatalf("request-count severity: got %s", res.Findings[1].Severity)
	}
}

func TestContentWeight_Run(t *testing.T) {
	ev := pagetest.New().On(ContentWeightScript, map[string]any{
		"totalBytes":   12_000,
		"htmlBytes":    12_000,
		"requestCount": 1,
		"domNodes":     40,
		"byType":       map[string]any{"document": map[string]any{"count": 1, "bytes": 12_000}},
	})
	v := audit.NewVisit("https://example.com")

	if err := NewContentWeight(ev).Run(context.Background(), v); err != nil {
		t.Fatalf("run: %v", err)
	}
	if v.ContentWeight.Score != 100 || v.ContentWeight.RequestCount != 1 {
		t.Fatalf("got %+v", v.ContentWeight)
	}
	if v.ContentWeight.ByType["document"].Bytes != 12_000 {
		t.Fatalf("by type: got %v", v.ContentWeight.ByType)
	}
}

func TestContentWeight_RejectsNegativeCount(t *testing.T) {
	ev := pagetest.New().On(ContentWeightScript, map[string]any{
		"totalBytes": 0, "requestCount": -1, "domNodes": 0,
	})
	v := audit.NewVisit("https://example.com")
	if err := NewContentWeight(ev).Run(context.Background(), v); err == nil {
		t.Fatal("expected schema error")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		512:       "512 B",
		1_500:     "1.5 KB",
		2_300_000: "2.3 MB",
	}
	for n, want := range tests {
		if got := formatBytes(n); got != want {
			t.Errorf("formatBytes(%d): got %q, want %q", n, got, want)
		}
	}
}

func ptr(s string) *string { return &s }

func TestScoreMobile(t *testing.T) {
	good := "width=device-width, initial-scale=1"
	tests := []struct {
		name  string
		m     MobileMetrics
		score int
		types []string
	}{
		{"responsive", MobileMetrics{Viewport: ptr(good), ViewportWidth: 390, ScrollWidth: 390}, 100, nil},
		{"missing viewport", MobileMetrics{ViewportWidth: 980, ScrollWidth: 980}, 70, []string{"viewport-missing"}},
		{"fixed width", MobileMetrics{Viewport: ptr("width=1024"), ViewportWidth: 390, ScrollWidth: 390}, 85,
			[]string{"viewport-not-responsive"}},
		{"zoom disabled", MobileMetrics{Viewport: ptr("width=device-width; user-scalable=no"), ViewportWidth: 390, ScrollWidth: 390}, 90,
			[]string{"zoom-disabled"}},
		{"maximum-scale one", MobileMetrics{Viewport: ptr("width=device-width, maximum-scale=1.0"), ViewportWidth: 390, ScrollWidth: 390}, 90,
			[]string{"zoom-disabled"}},
		{"overflow", MobileMetrics{Viewport: ptr(good), ViewportWidth: 390, ScrollWidth: 600}, 80,
			[]string{"horizontal-scroll"}},
		{"few small targets", MobileMetrics{Viewport: ptr(good), ViewportWidth: 390, ScrollWidth: 390,
			SmallTapTargets: []string{"#a", "#b", "#c"}, SmallTapTargetCount: 3}, 90, []string{"tap-targets-small"}},
		{"many small targets and fonts", MobileMetrics{Viewport: ptr(good), ViewportWidth: 390, ScrollWidth: 390,
			SmallTapTargetCount: 8, SmallFontCount: 11}, 65, []string{"tap-targets-small", "font-too-small"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ScoreMobile(tt.m)
			if res.Score != tt.score {
				t.Fatalf("score: got %d, want %d (%v)", res.Score, tt.score, findingTypes(res.Findings))
			}
			got := findingTypes(res.Findings)
			if strings.Join(got, ",") != strings.Join(tt.types, ",") {
				t.Fatalf("findings: got %v, want %v", got, tt.types)
			}
		})
	}
}

func TestScoreMobile_TapTargetSeverity(t *testing.T) {
	few := ScoreMobile(MobileMetrics{Viewport: ptr("width=device-width"), SmallTapTargetCount: 5})
	many := ScoreMobile(MobileMetrics{Viewport: ptr("width=device-width"), SmallTapTargetCount: 6})
	if few.Findings[0].Severity != audit.SeverityWarning {
		t.Fatalf("5 targets: got %s", few.Findings[0].Severity)
	}
	if many.Findings[0].Severity != audit.SeverityError {
		t.Fatalf("6 targets: got %s", many.Findings[0].Severity)
	}
}

func TestParseViewport(t *testing.T) {
	vp := ParseViewport(" Width = device-width ; Initial-Scale=1, , user-scalable=NO")
	if vp["width"] != "device-width" || vp["initial-scale"] != "1" || vp["user-scalable"] != "no" {
		t.Fatalf("got %v", vp)
	}
}

func TestMobile_Run(t *testing.T) {
	ev := pagetest.New().On(MobileScript, map[string]any{
		"viewport":      nil,
		"viewportWidth": 980,
		"scrollWidth":   980,
	})
	v := audit.NewVisit("https://example.com")
	if err := NewMobile(ev).Run(context.Background(), v); err != nil {
		t.Fatalf("run: %v", err)
	}
	if v.Mobile.Score != 70 || v.Mobile.Viewport != "" {
		t.Fatalf("got %+v", v.Mobile)
	}
}
