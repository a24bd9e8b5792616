// Package auditor drives audits end to end: it opens a page per URL,
// builds the check pipeline, runs it, wraps the Visit into a report and
// hands the report to the store, the metrics recorder and the sinks.
package auditor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/pageaudit/a11y"
	"github.com/hazyhaar/pageaudit/audit"
	"github.com/hazyhaar/pageaudit/checks"
	"github.com/hazyhaar/pageaudit/internal/config"
	"github.com/hazyhaar/pageaudit/internal/idgen"
	"github.com/hazyhaar/pageaudit/internal/observability"
	"github.com/hazyhaar/pageaudit/internal/sink"
	"github.com/hazyhaar/pageaudit/internal/store"
	"github.com/hazyhaar/pageaudit/page"
	"github.com/hazyhaar/pageaudit/report"
)

// Options configures an Auditor.
type Options struct {
	// Checks to run, by name, in config.AllChecks order. Empty runs all.
	Checks        []string
	Levels        []audit.Level
	Screenshots   bool
	ScreenshotCap int
	Navigate      page.NavigateOptions
	// Concurrency bounds RunMany. Default: 2.
	Concurrency int

	Logger   *slog.Logger
	Observer audit.Observer
	Sink     sink.Sink
	Store    *store.Store
	Metrics  *observability.MetricsManager
	IDs      idgen.Generator
}

// OptionsFromConfig maps the file configuration onto Options. Sinks, store
// and metrics are wired by the caller.
func OptionsFromConfig(c *config.Config) (Options, error) {
	levels, err := c.Levels()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Checks:        c.Audits.Checks,
		Levels:        levels,
		Screenshots:   c.Audits.Screenshots,
		ScreenshotCap: c.Audits.ScreenshotCap,
		Navigate:      c.NavigateOptions(),
		Concurrency:   c.Concurrency,
	}, nil
}

// Auditor runs audits against pages handed out by an Opener.
type Auditor struct {
	opener page.Opener
	opts   Options
	on     map[string]bool
}

// New creates an Auditor.
func New(opener page.Opener, opts Options) *Auditor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}
	if opts.IDs == nil {
		opts.IDs = idgen.Run
	}
	if len(opts.Checks) == 0 {
		opts.Checks = config.AllChecks
	}
	a := &Auditor{opener: opener, opts: opts, on: make(map[string]bool, len(opts.Checks))}
	for _, n := range opts.Checks {
		a.on[n] = true
	}
	return a
}

// Pipeline builds the check sequence for one page. HTTP comes first since
// every other check reads what navigation left behind.
func (a *Auditor) Pipeline(ev page.Evaluator) *audit.Pipeline {
	obs := a.observer()
	p := audit.NewPipeline(audit.WithLogger(a.opts.Logger), audit.WithObserver(obs))
	if a.on[config.CheckHTTP] {
		p.Add(checks.NewHTTP(ev, a.opts.Navigate))
	}
	if a.on[config.CheckSecurityHeaders] {
		p.Add(checks.NewSecurityHeaders())
	}
	if a.on[config.CheckPerformance] {
		p.Add(checks.NewPerformance(ev))
	}
	if a.on[config.CheckContentWeight] {
		p.Add(checks.NewContentWeight(ev))
	}
	if a.on[config.CheckMobile] {
		p.Add(checks.NewMobile(ev))
	}
	if a.on[config.CheckAccessibility] {
		p.Add(a11y.NewSuite(ev, a11y.Options{
			Levels:        a.opts.Levels,
			Screenshots:   a.opts.Screenshots,
			ScreenshotCap: a.opts.ScreenshotCap,
			Logger:        a.opts.Logger,
			Observer:      obs,
		}))
	}
	return p
}

func (a *Auditor) observer() audit.Observer {
	var obs []audit.Observer
	if a.opts.Observer != nil {
		obs = append(obs, a.opts.Observer)
	}
	if a.opts.Metrics != nil {
		obs = append(obs, a.opts.Metrics.Observer())
	}
	if len(obs) == 0 {
		return nil
	}
	return func(name string, elapsed time.Duration, err error) {
		for _, o := range obs {
			o(name, elapsed, err)
		}
	}
}

// Run audits url on a fresh page. Check failures are inside the report;
// an error means no page could be opened. Delivery failures are logged.
func (a *Auditor) Run(ctx context.Context, url string) (*report.Report, error) {
	pg, err := a.opener.OpenPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("auditor: open page for %s: %w", url, err)
	}
	defer func() {
		if err := pg.Close(); err != nil {
			a.opts.Logger.Debug("auditor: close page", "url", url, "error", err)
		}
	}()

	started := time.Now()
	v := a.Pipeline(pg).Run(ctx, audit.NewVisit(url))
	rep, err := report.New(a.opts.IDs(), started, time.Now(), v)
	if err != nil {
		return nil, fmt.Errorf("auditor: %w", err)
	}

	a.opts.Logger.Info("auditor: audit done",
		"id", rep.ID,
		"url", url,
		"failed", rep.Failed(),
		"duration", rep.Duration())
	a.deliver(ctx, rep)
	return rep, nil
}

func (a *Auditor) deliver(ctx context.Context, rep *report.Report) {
	if a.opts.Metrics != nil {
		a.opts.Metrics.RecordVisit(rep.Visit)
	}
	if a.opts.Store != nil {
		if err := a.opts.Store.SaveRun(ctx, rep); err != nil {
			a.opts.Logger.Error("auditor: store report", "id", rep.ID, "error", err)
		}
	}
	if a.opts.Sink != nil {
		if err := a.opts.Sink.Send(ctx, rep); err != nil {
			a.opts.Logger.Warn("auditor: deliver report", "id", rep.ID, "error", err)
		}
	}
}

// RunMany audits urls concurrently, one page per URL, at most
// Options.Concurrency at a time. Reports come back in input order; a URL
// whose page could not be opened leaves a nil entry and contributes to
// the joined error.
func (a *Auditor) RunMany(ctx context.Context, urls []string) ([]*report.Report, error) {
	reports := make([]*report.Report, len(urls))
	errs := make([]error, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)
	for i, u := range urls {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			reports[i], errs[i] = a.Run(gctx, u)
			return nil
		})
	}
	g.Wait()
	return reports, errors.Join(errs...)
}
