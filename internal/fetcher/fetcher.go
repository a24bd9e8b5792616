// Package fetcher is the HTTP-only page.Opener. It performs one GET per
// page and answers the DOM script from the response body. Scripts that
// need a live engine (performance, mobile, highlighting) and screenshots
// return page.ErrUnsupported, so those audits fail in isolation while
// the header and accessibility audits still run.
package fetcher

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/pageaudit/page"
)

// maxBody caps the bytes read from one response.
const maxBody = 10 << 20

// Fetcher opens HTTP-only pages.
type Fetcher struct {
	client *http.Client
	ua     string
	logger *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets the HTTP client. Its CheckRedirect is replaced per page.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.ua = ua }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{},
		ua:     "Mozilla/5.0 (compatible; pageaudit/1.0)",
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// OpenPage implements page.Opener.
func (f *Fetcher) OpenPage(context.Context) (page.Page, error) {
	return &Page{f: f}, nil
}

// Page holds the last fetched document.
type Page struct {
	f    *Fetcher
	mu   sync.Mutex
	body string
}

// Navigate GETs url, following redirects, and records each hop.
func (p *Page) Navigate(ctx context.Context, url string, opts page.NavigateOptions) (*page.Navigation, error) {
	opts = opts.WithDefaults()
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var redirects []page.Redirect
	client := *p.f.client
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return fmt.Errorf("stopped after %d redirects", len(via))
		}
		prev := via[len(via)-1]
		status := 0
		if req.Response != nil {
			status = req.Response.StatusCode
		}
		redirects = append(redirects, page.Redirect{
			From:      prev.URL.String(),
			To:        req.URL.String(),
			Status:    status,
			Timestamp: time.Now(),
		})
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetcher: new request: %w", err)
	}
	req.Header.Set("User-Agent", p.f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetcher: get %s: %w", url, err)
	}
	defer resp.Body.Close()
	elapsed := time.Since(start)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("fetcher: read body: %w", err)
	}

	p.mu.Lock()
	p.body = string(body)
	p.mu.Unlock()

	headers := flatten(resp.Header)
	nav := &page.Navigation{
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Redirects:  redirects,
		Responses: []page.Response{{
			URL:       resp.Request.URL.String(),
			Status:    resp.StatusCode,
			Headers:   headers,
			Timestamp: start.Add(elapsed),
		}},
		TLS:     tlsOf(resp.TLS),
		Elapsed: elapsed,
	}

	if NeedsBrowser(body) {
		p.f.logger.Warn("fetcher: page looks script-rendered, accessibility results may be partial", "url", url)
	}
	p.f.logger.Debug("fetcher: fetched", "url", url, "status", resp.StatusCode, "size", len(body), "redirects", len(redirects))
	return nav, nil
}

// Evaluate answers page.OuterHTMLScript from the fetched body.
func (p *Page) Evaluate(_ context.Context, script string, _ ...any) (json.RawMessage, error) {
	if script != page.OuterHTMLScript {
		return nil, fmt.Errorf("fetcher: evaluate: %w", page.ErrUnsupported)
	}
	p.mu.Lock()
	body := p.body
	p.mu.Unlock()
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("fetcher: encode body: %w", err)
	}
	return raw, nil
}

// Screenshot is not available without a renderer.
func (p *Page) Screenshot(context.Context, page.ScreenshotOptions) ([]byte, error) {
	return nil, fmt.Errorf("fetcher: screenshot: %w", page.ErrUnsupported)
}

// Close drops the stored body.
func (p *Page) Close() error {
	p.mu.Lock()
	p.body = ""
	p.mu.Unlock()
	return nil
}

func flatten(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		out[strings.ToLower(k)] = strings.Join(vs, ", ")
	}
	return out
}

func tlsOf(cs *tls.ConnectionState) *page.TLS {
	if cs == nil {
		return nil
	}
	t := &page.TLS{
		Protocol: tls.VersionName(cs.Version),
		Cipher:   tls.CipherSuiteName(cs.CipherSuite),
	}
	if len(cs.PeerCertificates) > 0 {
		leaf := cs.PeerCertificates[0]
		t.SubjectName = leaf.Subject.CommonName
		t.Issuer = leaf.Issuer.CommonName
		t.ValidTo = leaf.NotAfter
	}
	return t
}
