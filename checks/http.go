package checks

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/hazyhaar/pageaudit/audit"
	"github.com/hazyhaar/pageaudit/page"
)

// HTTPName is the name of the navigation audit.
const HTTPName = "http"

// HTTP navigates to the visit URL and records the network-level facts:
// status, final URL, redirects, headers, response time and TLS details.
// Every in-page audit logically depends on it, but nothing enforces that:
// when navigation fails the later audits run against whatever the page
// holds.
type HTTP struct {
	ev   page.Evaluator
	opts page.NavigateOptions
}

// NewHTTP creates the navigation audit.
func NewHTTP(ev page.Evaluator, opts page.NavigateOptions) *HTTP {
	return &HTTP{ev: ev, opts: opts.WithDefaults()}
}

func (h *HTTP) Name() string { return HTTPName }

func (h *HTTP) Run(ctx context.Context, v *audit.Visit) error {
	nav, err := h.ev.Navigate(ctx, v.URL, h.opts)
	if err != nil {
		return fmt.Errorf("http: navigate %s: %w", v.URL, err)
	}

	status := nav.StatusCode
	v.StatusCode = &status
	if nav.FinalURL != "" && nav.FinalURL != v.URL {
		v.FinalURL = nav.FinalURL
	}

	v.RedirectChain = v.RedirectChain[:0]
	for _, r := range nav.Redirects {
		v.RedirectChain = append(v.RedirectChain, audit.Redirect{
			From:      r.From,
			To:        r.To,
			Status:    r.Status,
			Timestamp: r.Timestamp,
		})
	}
	v.RedirectCount = len(v.RedirectChain)
	v.Headers = NormalizeHeaders(nav.Headers)
	v.ResponseTimeMS = audit.Float(float64(nav.Elapsed.Microseconds()) / 1000)
	v.Security = securityOf(nav, finalURL(v))
	return nil
}

// NormalizeHeaders lower-cases names and drops empty values.
func NormalizeHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, val := range h {
		val = strings.TrimSpace(val)
		if val == "" {
			continue
		}
		out[strings.ToLower(k)] = val
	}
	return out
}

func finalURL(v *audit.Visit) string {
	if v.FinalURL != "" {
		return v.FinalURL
	}
	return v.URL
}

func securityOf(nav *page.Navigation, target string) *audit.Security {
	scheme := "unknown"
	if u, err := url.Parse(target); err == nil && u.Scheme != "" {
		scheme = strings.ToLower(u.Scheme)
	}
	sec := &audit.Security{Scheme: scheme}
	if nav.TLS != nil {
		sec.Protocol = nav.TLS.Protocol
		sec.Cipher = nav.TLS.Cipher
		sec.SubjectName = nav.TLS.SubjectName
		sec.Issuer = nav.TLS.Issuer
		sec.ValidTo = nav.TLS.ValidTo
	}
	return sec
}
