package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/pageaudit/auditor"
	"github.com/hazyhaar/pageaudit/internal/browser"
	"github.com/hazyhaar/pageaudit/internal/config"
	"github.com/hazyhaar/pageaudit/internal/dbopen"
	"github.com/hazyhaar/pageaudit/internal/fetcher"
	"github.com/hazyhaar/pageaudit/internal/observability"
	"github.com/hazyhaar/pageaudit/internal/sink"
	"github.com/hazyhaar/pageaudit/internal/store"
	"github.com/hazyhaar/pageaudit/page"
)

// stack is everything an audit run needs. Close releases it in reverse
// order of construction.
type stack struct {
	auditor *auditor.Auditor
	store   *store.Store
	closers []func() error
}

func (s *stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// build wires the opener, store, metrics and sinks described by cfg.
// extra sinks are added after the configured ones.
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger, extra ...sink.Sink) (_ *stack, err error) {
	st := &stack{}
	defer func() {
		if err != nil {
			st.Close()
		}
	}()

	opts, err := auditor.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts.Logger = logger

	opener, err := newOpener(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if c, ok := opener.(interface{ Close() error }); ok {
		st.closers = append(st.closers, c.Close)
	}

	if cfg.StorePath != "" {
		s, err := store.Open(cfg.StorePath, dbopen.WithMkdirAll())
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		st.store = s
		st.closers = append(st.closers, s.Close)
		opts.Store = s
	}

	if cfg.MetricsPath != "" {
		db, err := dbopen.Open(cfg.MetricsPath, dbopen.WithMkdirAll(), dbopen.WithSchema(observability.Schema))
		if err != nil {
			return nil, fmt.Errorf("open metrics: %w", err)
		}
		mm := observability.NewMetricsManager(db, 0, 0, logger)
		st.closers = append(st.closers, db.Close, mm.Close)
		opts.Metrics = mm
	}

	router, err := sink.FromConfig(cfg.Sinks, logger)
	if err != nil {
		return nil, err
	}
	for _, s := range extra {
		router.Add(s)
	}
	st.closers = append(st.closers, router.Close)
	opts.Sink = router

	st.auditor = auditor.New(opener, opts)
	return st, nil
}

// newOpener starts Chrome, or returns the fetch-only opener in http mode.
func newOpener(ctx context.Context, cfg *config.Config, logger *slog.Logger) (page.Opener, error) {
	b := cfg.Browser
	if b.Mode == "http" {
		logger.Info("pageaudit: http mode, script-based audits will report unsupported")
		return fetcher.New(fetcher.WithUserAgent(b.UserAgent), fetcher.WithLogger(logger)), nil
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL:        b.Remote,
		Bin:              b.Bin,
		Headful:          b.Headful,
		Stealth:          b.Stealth,
		MemoryLimit:      b.MemoryLimit,
		RecycleInterval:  b.RecycleInterval,
		ResourceBlocking: b.ResourceBlocking,
		XvfbDisplay:      b.XvfbDisplay,
		Viewport: browser.Viewport{
			Width:  b.Viewport.Width,
			Height: b.Viewport.Height,
			Mobile: b.Viewport.Mobile,
		},
		Logger: logger,
	})
	if err := mgr.Start(ctx); err != nil {
		mgr.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return mgr, nil
}
