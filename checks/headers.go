package checks

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hazyhaar/pageaudit/audit"
)

// SecurityHeadersName is the name of the response header audit.
const SecurityHeadersName = "security-headers"

// SecurityHeaders scores the main document's response headers. It reads
// Visit.Headers and fails when navigation never wrote them.
type SecurityHeaders struct{}

// NewSecurityHeaders creates the header audit.
func NewSecurityHeaders() *SecurityHeaders { return &SecurityHeaders{} }

func (s *SecurityHeaders) Name() string { return SecurityHeadersName }

func (s *SecurityHeaders) Run(_ context.Context, v *audit.Visit) error {
	if v.Headers == nil {
		return fmt.Errorf("security-headers: no response headers: %w", audit.ErrPrerequisite)
	}
	scheme := ""
	if v.Security != nil {
		scheme = v.Security.Scheme
	}
	v.SecurityHeaders = ScoreSecurityHeaders(v.Headers, scheme)
	return nil
}

type headerRule struct {
	typ      string
	header   string
	penalty  int
	severity audit.Severity
	message  string
	// satisfied reports whether headers meet the rule; applies reports
	// whether the rule is relevant for the scheme.
	satisfied func(h map[string]string) bool
	applies   func(scheme string) bool
}

func has(name string) func(map[string]string) bool {
	return func(h map[string]string) bool { return h[name] != "" }
}

var headerRules = []headerRule{
	{
		typ: "hsts-missing", header: "strict-transport-security", penalty: 15,
		severity:  audit.SeverityError,
		message:   "HTTPS response without Strict-Transport-Security",
		satisfied: has("strict-transport-security"),
		applies:   func(scheme string) bool { return scheme == "https" },
	},
	{
		typ: "csp-missing", header: "content-security-policy", penalty: 20,
		severity:  audit.SeverityWarning,
		message:   "No Content-Security-Policy header",
		satisfied: has("content-security-policy"),
	},
	{
		typ: "nosniff-missing", header: "x-content-type-options", penalty: 10,
		severity: audit.SeverityWarning,
		message:  "X-Content-Type-Options is not set to nosniff",
		satisfied: func(h map[string]string) bool {
			return strings.EqualFold(h["x-content-type-options"], "nosniff")
		},
	},
	{
		typ: "framing-unprotected", header: "x-frame-options", penalty: 10,
		severity: audit.SeverityWarning,
		message:  "Neither X-Frame-Options nor CSP frame-ancestors restricts framing",
		satisfied: func(h map[string]string) bool {
			return h["x-frame-options"] != "" ||
				strings.Contains(strings.ToLower(h["content-security-policy"]), "frame-ancestors")
		},
	},
	{
		typ: "referrer-policy-missing", header: "referrer-policy", penalty: 5,
		severity:  audit.SeverityWarning,
		message:   "No Referrer-Policy header",
		satisfied: has("referrer-policy"),
	},
}

var versionPattern = regexp.MustCompile(`\d+\.\d+`)

// ScoreSecurityHeaders applies the header rules to normalized headers.
func ScoreSecurityHeaders(headers map[string]string, scheme string) *audit.SecurityHeadersResult {
	var card audit.Scorecard
	res := &audit.SecurityHeadersResult{
		Present:  []string{},
		Missing:  []string{},
		Findings: []audit.Finding{},
	}

	for _, r := range headerRules {
		if r.applies != nil && !r.applies(scheme) {
			continue
		}
		if r.satisfied(headers) {
			res.Present = append(res.Present, r.header)
			continue
		}
		res.Missing = append(res.Missing, r.header)
		card.Deduct(r.typ, r.penalty)
		res.Findings = append(res.Findings, audit.Finding{
			Type:     r.typ,
			Severity: r.severity,
			Message:  r.message,
		})
	}

	for _, name := range []string{"server", "x-powered-by"} {
		val := headers[name]
		if val == "" || !versionPattern.MatchString(val) {
			continue
		}
		card.Deduct("version-disclosure", 5)
		res.Findings = append(res.Findings, audit.Finding{
			Type:     "version-disclosure",
			Severity: audit.SeverityWarning,
			Message:  fmt.Sprintf("%s header discloses a version: %q", name, val),
		})
	}

	res.Score = card.Score()
	res.Grade = card.Grade()
	return res
}
