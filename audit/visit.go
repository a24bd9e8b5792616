// Package audit is the page audit engine: the Audit contract, the Visit
// record every check reads and writes, the Safe isolation wrapper and the
// sequential Pipeline that drives them.
//
// A Visit is created once per page, filled in by each Audit in turn and
// serialised wholesale once the pipeline has finished. Every field has a
// single owning Audit, documented next to the field.
package audit

import "time"

// Visit is the shared result record of one page visit.
type Visit struct {
	// URL is the audited target, set by the caller.
	URL string `json:"url"`

	// Written by the HTTP audit.
	StatusCode     *int              `json:"status_code,omitempty"`
	FinalURL       string            `json:"final_url,omitempty"`
	RedirectCount  int               `json:"redirect_count"`
	RedirectChain  []Redirect        `json:"redirect_chain,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	ResponseTimeMS *float64          `json:"response_time_ms,omitempty"`
	Security       *Security         `json:"security,omitempty"`

	// Written by the performance audit.
	Timing      Timing             `json:"timing"`
	Performance *PerformanceResult `json:"performance,omitempty"`

	// Written by the content-weight audit.
	ContentWeight *ContentWeightResult `json:"content_weight,omitempty"`

	// Written by the mobile audit.
	Mobile *MobileResult `json:"mobile,omitempty"`

	// Written by the security-headers audit.
	SecurityHeaders *SecurityHeadersResult `json:"security_headers,omitempty"`

	// One entry per accessibility level audit; each level writes its own key.
	AccessibilityLevels map[Level]*LevelResult `json:"accessibility_levels,omitempty"`

	// Written by the accessibility suite.
	Accessibility *AccessibilityReport `json:"accessibility,omitempty"`

	// Errors maps audit name to failure description. Written by Safe only.
	Errors map[string]string `json:"errors"`
}

// Redirect is one hop of the navigation redirect chain.
type Redirect struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Security describes the TLS session of the main document response.
type Security struct {
	Scheme      string    `json:"scheme"`
	Protocol    string    `json:"protocol,omitempty"`
	Cipher      string    `json:"cipher,omitempty"`
	SubjectName string    `json:"subject_name,omitempty"`
	Issuer      string    `json:"issuer,omitempty"`
	ValidTo     time.Time `json:"valid_to,omitzero"`
}

// Timing holds page timing metrics in milliseconds (CLS is unitless).
// Nil means the browser or page did not report the metric.
type Timing struct {
	TTFB             *float64 `json:"ttfb_ms,omitempty"`
	FCP              *float64 `json:"fcp_ms,omitempty"`
	LCP              *float64 `json:"lcp_ms,omitempty"`
	CLS              *float64 `json:"cls,omitempty"`
	INP              *float64 `json:"inp_ms,omitempty"`
	DOMContentLoaded *float64 `json:"dom_content_loaded_ms,omitempty"`
	LoadComplete     *float64 `json:"load_complete_ms,omitempty"`
}

// NewVisit creates an empty Visit for url.
func NewVisit(url string) *Visit {
	return &Visit{
		URL:    url,
		Errors: make(map[string]string),
	}
}

// SetError records a failure for the named audit, replacing any previous one.
func (v *Visit) SetError(name, desc string) {
	if v.Errors == nil {
		v.Errors = make(map[string]string)
	}
	v.Errors[name] = desc
}

// Failed reports whether the named audit recorded a failure.
func (v *Visit) Failed(name string) bool {
	_, ok := v.Errors[name]
	return ok
}

// SetLevelResult stores the result of one accessibility level audit.
func (v *Visit) SetLevelResult(level Level, r *LevelResult) {
	if v.AccessibilityLevels == nil {
		v.AccessibilityLevels = make(map[Level]*LevelResult)
	}
	v.AccessibilityLevels[level] = r
}

// LevelResult returns the stored result for level, or nil.
func (v *Visit) LevelResult(level Level) *LevelResult {
	return v.AccessibilityLevels[level]
}

// Loaded reports whether navigation produced a status code.
func (v *Visit) Loaded() bool {
	return v.StatusCode != nil
}
