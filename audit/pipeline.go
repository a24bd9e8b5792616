package audit

import (
	"context"
	"log/slog"
	"time"
)

// Pipeline runs an ordered list of isolated audits against one Visit.
// Audits run strictly one after another: a page handles one command at a
// time.
type Pipeline struct {
	audits  []*Safe
	logger  *slog.Logger
	observe Observer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger handed to every Safe the pipeline creates.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithObserver sets the run observer handed to every Safe the pipeline
// creates.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observe = o }
}

// NewPipeline creates an empty pipeline.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Add appends audits in order. Each one is wrapped in exactly one Safe.
func (p *Pipeline) Add(audits ...Audit) *Pipeline {
	for _, a := range audits {
		p.audits = append(p.audits, Wrap(a,
			WithSafeLogger(p.logger),
			WithSafeObserver(p.observe)))
	}
	return p
}

// Names returns the audit names in run order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.audits))
	for i, a := range p.audits {
		names[i] = a.Name()
	}
	return names
}

// Len returns the number of audits.
func (p *Pipeline) Len() int { return len(p.audits) }

// Run executes every audit against v and returns v. A failing audit never
// stops the run; its failure is in v.Errors. A nil v yields a Visit with
// an empty URL.
func (p *Pipeline) Run(ctx context.Context, v *Visit) *Visit {
	if v == nil {
		v = NewVisit("")
	}
	start := time.Now()
	for _, a := range p.audits {
		a.Run(ctx, v)
	}
	p.logger.Debug("audit: pipeline done",
		"url", v.URL,
		"audits", len(p.audits),
		"failed", len(v.Errors),
		"elapsed", time.Since(start))
	return v
}
