// Package page defines the narrow browser capability the audit checks
// depend on: evaluate a script in page scope, navigate, take a screenshot.
//
// Implementations live in internal/browser (Chrome via Rod) and
// internal/fetcher (HTTP only, no script engine).
package page

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnsupported is returned by evaluators lacking a capability, e.g. the
// HTTP-only evaluator asked to run arbitrary scripts.
var ErrUnsupported = errors.New("page: capability not supported")

// Evaluator is the page handle the audits run against. A page processes
// one command at a time; callers must not use it concurrently.
type Evaluator interface {
	// Evaluate runs script in page scope. The script must return a
	// JSON-encoded string; its decoded bytes are returned.
	Evaluate(ctx context.Context, script string, args ...any) (json.RawMessage, error)

	// Navigate loads url and reports what the network layer saw.
	Navigate(ctx context.Context, url string, opts NavigateOptions) (*Navigation, error)

	// Screenshot captures the current viewport.
	Screenshot(ctx context.Context, opts ScreenshotOptions) ([]byte, error)
}

// Page is an Evaluator backed by a resource the caller must release.
type Page interface {
	Evaluator
	Close() error
}

// Opener hands out fresh pages, one per audited URL.
type Opener interface {
	OpenPage(ctx context.Context) (Page, error)
}

// WaitPolicy selects when navigation is considered complete.
type WaitPolicy string

const (
	WaitLoad             WaitPolicy = "load"
	WaitDOMContentLoaded WaitPolicy = "domcontentloaded"
	WaitNetworkIdle      WaitPolicy = "networkidle"
)

// NavigateOptions bounds a navigation.
type NavigateOptions struct {
	Wait    WaitPolicy
	Timeout time.Duration
}

// DefaultNavigateTimeout applies when NavigateOptions.Timeout is zero.
const DefaultNavigateTimeout = 30 * time.Second

// WithDefaults fills zero fields.
func (o NavigateOptions) WithDefaults() NavigateOptions {
	if o.Wait == "" {
		o.Wait = WaitLoad
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultNavigateTimeout
	}
	return o
}

// Response is one network response observed during navigation.
type Response struct {
	URL       string            `json:"url"`
	Status    int               `json:"status"`
	Headers   map[string]string `json:"headers"`
	Timestamp time.Time         `json:"timestamp"`
}

// Redirect is one redirect hop of the main document.
type Redirect struct {
	From      string
	To        string
	Status    int
	Timestamp time.Time
}

// TLS describes the security details of the main document response.
type TLS struct {
	Protocol    string
	Cipher      string
	SubjectName string
	Issuer      string
	ValidTo     time.Time
}

// Navigation is the outcome of Navigate.
type Navigation struct {
	FinalURL   string
	StatusCode int
	// Headers of the final document response.
	Headers   map[string]string
	Redirects []Redirect
	// Responses in arrival order, main document and subresources.
	Responses []Response
	TLS       *TLS
	Elapsed   time.Duration
}

// ScreenshotOptions configures a capture.
type ScreenshotOptions struct {
	FullPage bool
	// Quality applies to JPEG; zero means PNG.
	Quality int
}

// Decode evaluates script and unmarshals its result into out.
func Decode(ctx context.Context, ev Evaluator, out any, script string, args ...any) error {
	raw, err := ev.Evaluate(ctx, script, args...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("page: decode result: %w", err)
	}
	return nil
}
