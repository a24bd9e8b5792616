// Package browser manages the Chrome instance audits run in: launch or
// remote connect via Rod, JS heap monitoring, interval and memory based
// recycling, and per-page tabs implementing page.Evaluator.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// ErrClosed is returned once the Manager has been closed.
var ErrClosed = errors.New("browser: manager is closed")

// monitorEvery is the heap and uptime check period.
const monitorEvery = 30 * time.Second

// Viewport is the emulated device of every tab.
type Viewport struct {
	Width  int
	Height int
	Mobile bool
}

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the DevTools WebSocket of an already running Chrome.
	// Empty launches a local one.
	RemoteURL string

	// Bin overrides the Chrome binary used by the launcher.
	Bin string

	// Headful runs Chrome with a window on an Xvfb display.
	Headful bool

	// Stealth opens tabs through go-rod/stealth.
	Stealth bool

	// MemoryLimit is the summed JS heap, in bytes, above which Chrome is
	// recycled. Default: 1GB.
	MemoryLimit int64

	// RecycleInterval is the maximum lifetime of one Chrome process.
	// Default: 4h.
	RecycleInterval time.Duration

	// ResourceBlocking lists resource types to block (images, fonts, media, stylesheets).
	ResourceBlocking []string

	// Viewport applied to new tabs. Zero width keeps Chrome's default.
	Viewport Viewport

	// XvfbDisplay for headful mode. Default: ":99".
	XvfbDisplay string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MemoryLimit <= 0 {
		c.MemoryLimit = 1 << 30
	}
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 4 * time.Hour
	}
	if c.XvfbDisplay == "" {
		c.XvfbDisplay = ":99"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// instance is one Chrome process (or remote connection).
type instance struct {
	browser  *rod.Browser
	launcher *launcher.Launcher // nil for remote
	started  time.Time
}

func (in *instance) shutdown() {
	if in.browser != nil {
		_ = in.browser.Close()
	}
	if in.launcher != nil {
		in.launcher.Cleanup()
	}
}

// Manager owns the Chrome instance and hands out tabs. A recycle asked for
// while tabs are open waits for the last one to close.
type Manager struct {
	cfg Config

	mu      sync.Mutex
	cur     *instance
	xvfb    *exec.Cmd
	gen     int
	tabs    int
	pending bool
	closed  bool
}

// NewManager creates a browser Manager. Call Start to launch Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Start brings up the first Chrome instance and monitors it until ctx ends.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if err := m.replaceLocked(); err != nil {
		return err
	}
	go m.monitor(ctx)
	return nil
}

// Generation counts the Chrome instances started so far.
func (m *Manager) Generation() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// Recycle replaces Chrome now, or once the last open tab closes.
func (m *Manager) Recycle() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.tabs > 0 {
		m.pending = true
		m.cfg.Logger.Info("browser: recycle deferred", "open_tabs", m.tabs)
		return nil
	}
	return m.replaceLocked()
}

// Close shuts down Chrome and Xvfb. Open tabs fail from then on.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.teardownLocked()
	return nil
}

// acquire registers an open tab and returns the browser to open it in.
func (m *Manager) acquire() (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.cur == nil {
		return nil, fmt.Errorf("browser: not started")
	}
	m.tabs++
	return m.cur.browser, nil
}

// release unregisters a tab and runs a deferred recycle if one is due.
func (m *Manager) release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tabs--
	if m.tabs > 0 || !m.pending || m.closed {
		return
	}
	m.pending = false
	if err := m.replaceLocked(); err != nil {
		m.cfg.Logger.Error("browser: deferred recycle failed", "error", err)
	}
}

// replaceLocked tears down the current instance, if any, and spawns the
// next one.
func (m *Manager) replaceLocked() error {
	if m.cur != nil {
		m.cfg.Logger.Info("browser: recycling", "generation", m.gen, "uptime", time.Since(m.cur.started))
	}
	m.teardownLocked()

	in, err := m.spawnLocked()
	if err != nil {
		return err
	}
	m.cur = in
	m.gen++
	return nil
}

func (m *Manager) teardownLocked() {
	if m.cur != nil {
		m.cur.shutdown()
		m.cur = nil
	}
	m.stopXvfb()
}

func (m *Manager) spawnLocked() (*instance, error) {
	log := m.cfg.Logger
	if m.cfg.Headful && m.cfg.RemoteURL == "" {
		if err := m.startXvfb(); err != nil {
			return nil, fmt.Errorf("browser: xvfb: %w", err)
		}
	}

	in := &instance{started: time.Now()}
	controlURL := m.cfg.RemoteURL
	if controlURL == "" {
		l := launcher.New().
			Headless(!m.cfg.Headful).
			Set("disable-blink-features", "AutomationControlled")
		if m.cfg.Bin != "" {
			l = l.Bin(m.cfg.Bin)
		}
		if m.cfg.Headful {
			l = l.Env("DISPLAY=" + m.cfg.XvfbDisplay)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		in.launcher = l
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		in.shutdown()
		return nil, fmt.Errorf("browser: connect %s: %w", controlURL, err)
	}
	in.browser = b
	log.Info("browser: ready", "remote", m.cfg.RemoteURL != "", "headful", m.cfg.Headful)
	return in, nil
}

func (m *Manager) monitor(ctx context.Context) {
	t := time.NewTicker(monitorEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		in := m.cur
		m.mu.Unlock()
		if in == nil {
			continue
		}

		heap, err := jsHeapUsage(in.browser)
		if err != nil {
			m.cfg.Logger.Debug("browser: heap check failed", "error", err)
			heap = -1
		}
		reason := recycleReason(time.Since(in.started), heap, m.cfg)
		if reason == "" {
			continue
		}
		m.cfg.Logger.Info("browser: recycle due", "reason", reason, "heap", heap)
		if err := m.Recycle(); err != nil {
			m.cfg.Logger.Error("browser: recycle failed", "error", err)
		}
	}
}

// recycleReason names why an instance should be replaced, or returns "".
// A negative heap means it could not be measured.
func recycleReason(uptime time.Duration, heap int64, cfg Config) string {
	switch {
	case uptime > cfg.RecycleInterval:
		return "interval"
	case heap > cfg.MemoryLimit:
		return "memory"
	}
	return ""
}

// jsHeapUsage sums the used JS heap of every open page.
func jsHeapUsage(b *rod.Browser) (int64, error) {
	pages, err := b.Pages()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, p := range pages {
		res, err := p.Eval(`() => performance.memory ? performance.memory.usedJSHeapSize : 0`)
		if err != nil {
			continue
		}
		total += int64(res.Value.Int())
	}
	return total, nil
}
