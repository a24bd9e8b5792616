// Package pagetest provides a scriptable page.Evaluator for tests.
package pagetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hazyhaar/pageaudit/page"
)

// Fake answers Evaluate calls from a script→value table. Unknown scripts
// fail, so a test notices when a check runs something unexpected.
type Fake struct {
	mu       sync.Mutex
	results  map[string]any
	failures map[string]error

	// HTML is returned for page.OuterHTMLScript when non-empty.
	HTML string

	// Nav and NavErr are returned by Navigate.
	Nav    *page.Navigation
	NavErr error

	// ShotFunc answers the n-th (0-based) Screenshot call. Nil returns a
	// fixed PNG header.
	ShotFunc func(n int) ([]byte, error)

	evals  []string
	shots  int
	closed bool
}

// New creates an empty Fake.
func New() *Fake {
	return &Fake{
		results:  make(map[string]any),
		failures: make(map[string]error),
	}
}

// On makes script evaluate to v (JSON-marshalled).
func (f *Fake) On(script string, v any) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[script] = v
	return f
}

// Fail makes script return err.
func (f *Fake) Fail(script string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[script] = err
	return f
}

func (f *Fake) Evaluate(ctx context.Context, script string, args ...any) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals = append(f.evals, script)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.failures[script]; ok {
		return nil, err
	}
	if v, ok := f.results[script]; ok {
		return json.Marshal(v)
	}
	switch script {
	case page.OuterHTMLScript:
		if f.HTML != "" {
			return json.Marshal(f.HTML)
		}
	case page.HighlightScript, page.ClearHighlightScript:
		return json.RawMessage("true"), nil
	}
	return nil, fmt.Errorf("pagetest: unexpected script (%d bytes)", len(script))
}

func (f *Fake) Navigate(ctx context.Context, url string, opts page.NavigateOptions) (*page.Navigation, error) {
	if f.NavErr != nil {
		return nil, f.NavErr
	}
	if f.Nav == nil {
		return &page.Navigation{FinalURL: url, StatusCode: 200, Headers: map[string]string{}}, nil
	}
	return f.Nav, nil
}

func (f *Fake) Screenshot(ctx context.Context, opts page.ScreenshotOptions) ([]byte, error) {
	f.mu.Lock()
	n := f.shots
	f.shots++
	fn := f.ShotFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(n)
	}
	return []byte("\x89PNG\r\n\x1a\n"), nil
}

// Evals returns every evaluated script in call order.
func (f *Fake) Evals() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.evals...)
}

// Screenshots returns the number of Screenshot calls.
func (f *Fake) Screenshots() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shots
}

// Close marks the fake closed. It implements page.Page.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Opener hands out a new page per OpenPage call. It implements page.Opener.
type Opener struct {
	// Make builds the n-th (0-based) page. Nil returns New().
	Make func(n int) (*Fake, error)

	mu    sync.Mutex
	pages []*Fake
	calls int
}

func (o *Opener) OpenPage(ctx context.Context) (page.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.mu.Lock()
	n := o.calls
	o.calls++
	o.mu.Unlock()

	f := New()
	if o.Make != nil {
		var err error
		if f, err = o.Make(n); err != nil {
			return nil, err
		}
	}
	o.mu.Lock()
	o.pages = append(o.pages, f)
	o.mu.Unlock()
	return f, nil
}

// Pages returns every page handed out so far.
func (o *Opener) Pages() []*Fake {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Fake(nil), o.pages...)
}
