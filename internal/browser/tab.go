package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/pageaudit/page"
)

// networkIdleWindow is how long the network must stay quiet for
// page.WaitNetworkIdle.
const networkIdleWindow = 500 * time.Millisecond

// Tab is one Chrome page. It implements page.Evaluator; like the page it
// wraps it handles one command at a time.
type Tab struct {
	page    *rod.Page
	manager *Manager
	router  *rod.HijackRouter
	once    sync.Once
}

// OpenTab creates a blank tab with stealth, viewport and resource blocking
// applied. The caller navigates through Tab.Navigate and must Close it.
func OpenTab(ctx context.Context, mgr *Manager) (*Tab, error) {
	b, err := mgr.acquire()
	if err != nil {
		return nil, err
	}

	var p *rod.Page
	if mgr.cfg.Stealth {
		p, err = stealth.Page(b)
	} else {
		p, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		mgr.release()
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	t := &Tab{page: p, manager: mgr}

	if vp := mgr.cfg.Viewport; vp.Width > 0 && vp.Height > 0 {
		err := p.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             vp.Width,
			Height:            vp.Height,
			DeviceScaleFactor: 1,
			Mobile:            vp.Mobile,
		})
		if err != nil {
			mgr.cfg.Logger.Warn("browser: set viewport failed", "error", err)
		}
	}
	if len(mgr.cfg.ResourceBlocking) > 0 {
		router, err := applyResourceBlocking(p, mgr.cfg.ResourceBlocking)
		if err != nil {
			mgr.cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
		t.router = router
	}
	return t, nil
}

// OpenPage implements page.Opener.
func (m *Manager) OpenPage(ctx context.Context) (page.Page, error) {
	t, err := OpenTab(ctx, m)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Evaluate runs script with args and returns the JSON string it produced.
func (t *Tab) Evaluate(ctx context.Context, script string, args ...any) (json.RawMessage, error) {
	res, err := t.page.Context(ctx).Eval(script, args...)
	if err != nil {
		return nil, fmt.Errorf("browser: eval: %w", err)
	}
	if res.Type != proto.RuntimeRemoteObjectTypeString {
		return nil, fmt.Errorf("browser: eval returned %s, want a JSON string", res.Type)
	}
	out := res.Value.Str()
	if !json.Valid([]byte(out)) {
		return nil, fmt.Errorf("browser: eval returned invalid JSON (%d bytes)", len(out))
	}
	return json.RawMessage(out), nil
}

// Navigate loads url and records the document responses and redirects seen
// on the main frame.
func (t *Tab) Navigate(ctx context.Context, url string, opts page.NavigateOptions) (*page.Navigation, error) {
	opts = opts.WithDefaults()
	navCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	p := t.page.Context(navCtx)
	rec := newRecorder(p.FrameID)

	evCtx, stopEvents := context.WithCancel(navCtx)
	defer stopEvents()
	wait := t.page.Context(evCtx).EachEvent(rec.onRequest, rec.onResponse)
	go wait()

	var waitDone func()
	switch opts.Wait {
	case page.WaitDOMContentLoaded:
		waitDone = p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	case page.WaitNetworkIdle:
		waitDone = p.WaitRequestIdle(networkIdleWindow, nil, nil, nil)
	}

	start := time.Now()
	if err := p.Navigate(url); err != nil {
		return nil, fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if waitDone != nil {
		waitDone()
	} else if err := p.WaitLoad(); err != nil {
		return nil, fmt.Errorf("browser: wait load %s: %w", url, err)
	}
	if err := navCtx.Err(); err != nil {
		return nil, fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	elapsed := time.Since(start)
	stopEvents()

	nav := rec.navigation()
	nav.Elapsed = elapsed
	if info, err := t.page.Context(ctx).Info(); err == nil && info.URL != "" {
		nav.FinalURL = info.URL
	}
	if nav.FinalURL == "" {
		nav.FinalURL = url
	}
	return nav, nil
}

// Screenshot captures the viewport, or the whole page with FullPage.
func (t *Tab) Screenshot(ctx context.Context, opts page.ScreenshotOptions) ([]byte, error) {
	req := &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng}
	if opts.Quality > 0 {
		q := opts.Quality
		req.Format = proto.PageCaptureScreenshotFormatJpeg
		req.Quality = &q
	}
	data, err := t.page.Context(ctx).Screenshot(opts.FullPage, req)
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return data, nil
}

// Close closes the tab and releases it from the manager.
func (t *Tab) Close() error {
	var err error
	t.once.Do(func() {
		if t.router != nil {
			_ = t.router.Stop()
		}
		err = t.page.Close()
		t.manager.release()
	})
	return err
}

// recorder collects main-frame document events during a navigation.
type recorder struct {
	frame     proto.PageFrameID
	mu        sync.Mutex
	redirects []page.Redirect
	responses []page.Response
	final     *proto.NetworkResponse
}

func newRecorder(frame proto.PageFrameID) *recorder {
	return &recorder{frame: frame}
}

func (r *recorder) onRequest(e *proto.NetworkRequestWillBeSent) {
	if e.RedirectResponse == nil || e.Type != proto.NetworkResourceTypeDocument || e.FrameID != r.frame {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redirects = append(r.redirects, page.Redirect{
		From:      e.RedirectResponse.URL,
		To:        e.Request.URL,
		Status:    e.RedirectResponse.Status,
		Timestamp: e.WallTime.Time(),
	})
}

func (r *recorder) onResponse(e *proto.NetworkResponseReceived) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, page.Response{
		URL:       e.Response.URL,
		Status:    e.Response.Status,
		Headers:   headerMap(e.Response.Headers),
		Timestamp: time.Now(),
	})
	if e.Type == proto.NetworkResourceTypeDocument && e.FrameID == r.frame {
		r.final = e.Response
	}
}

func (r *recorder) navigation() *page.Navigation {
	r.mu.Lock()
	defer r.mu.Unlock()
	nav := &page.Navigation{
		Redirects: append([]page.Redirect(nil), r.redirects...),
		Responses: append([]page.Response(nil), r.responses...),
		Headers:   map[string]string{},
	}
	if r.final == nil {
		return nav
	}
	nav.StatusCode = r.final.Status
	nav.FinalURL = r.final.URL
	nav.Headers = headerMap(r.final.Headers)
	if sd := r.final.SecurityDetails; sd != nil {
		nav.TLS = &page.TLS{
			Protocol:    sd.Protocol,
			Cipher:      sd.Cipher,
			SubjectName: sd.SubjectName,
			Issuer:      sd.Issuer,
			ValidTo:     sd.ValidTo.Time(),
		}
	}
	return nav
}

func headerMap(h proto.NetworkHeaders) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v.Str()
	}
	return out
}
