package sink

import (
	"context"

	"github.com/hazyhaar/pageaudit/report"
)

// Func is called for each report, in process.
type Func func(ctx context.Context, r *report.Report) error

// Callback hands reports to a Go function without serialising them.
type Callback struct {
	fn Func
}

// NewCallback creates a Callback sink. fn may be nil.
func NewCallback(fn Func) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) Send(ctx context.Context, r *report.Report) error {
	if c.fn == nil {
		return nil
	}
	return c.fn(ctx, r)
}

func (c *Callback) Close() error { return nil }
