// Package sink delivers finished reports to output backends.
package sink

import (
	"context"

	"github.com/hazyhaar/pageaudit/report"
)

// Sink is the output interface. Implementations deliver reports to
// different backends (stdout, webhook, directory, in-process callback).
type Sink interface {
	Send(ctx context.Context, r *report.Report) error
	Close() error
}
