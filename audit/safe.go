package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
)

// maxTraceLines caps the stack summary attached to failure logs.
const maxTraceLines = 12

// Observer is notified after every wrapped run with its duration and the
// failure, if any.
type Observer func(name string, elapsed time.Duration, err error)

// Safe isolates one Audit. Its Run never returns an error: a failure or a
// panic of the wrapped audit is recorded in Visit.Errors under the wrapped
// audit's name and logged, then Run returns normally.
type Safe struct {
	inner   Audit
	logger  *slog.Logger
	observe Observer
}

// SafeOption configures a Safe.
type SafeOption func(*Safe)

// WithSafeLogger sets the logger receiving failure reports.
func WithSafeLogger(l *slog.Logger) SafeOption {
	return func(s *Safe) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSafeObserver sets a run observer.
func WithSafeObserver(o Observer) SafeOption {
	return func(s *Safe) { s.observe = o }
}

// Wrap returns an isolated version of a. Wrapping a *Safe returns it
// unchanged, so an audit is never isolated twice.
func Wrap(a Audit, opts ...SafeOption) *Safe {
	if s, ok := a.(*Safe); ok {
		return s
	}
	s := &Safe{inner: a, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Name is the wrapped audit's name.
func (s *Safe) Name() string { return s.inner.Name() }

// Unwrap returns the wrapped audit.
func (s *Safe) Unwrap() Audit { return s.inner }

// Run runs the wrapped audit and always returns nil.
func (s *Safe) Run(ctx context.Context, v *Visit) error {
	name := s.inner.Name()
	if v == nil {
		s.logger.Error("audit: nil visit", "audit", name)
		return nil
	}

	start := time.Now()
	err := s.invoke(ctx, v)
	elapsed := time.Since(start)

	if s.observe != nil {
		s.observe(name, elapsed, err)
	}
	if err == nil {
		return nil
	}

	v.SetError(name, Describe(err))
	s.logger.Error("audit: check failed",
		"audit", name,
		"url", v.URL,
		"elapsed", elapsed,
		"error", err,
		"trace", traceSummary(err))
	return nil
}

func (s *Safe) invoke(ctx context.Context, v *Visit) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	return s.inner.Run(ctx, v)
}

// PanicError carries a recovered panic.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Describe converts err into the non-empty description stored in
// Visit.Errors.
func Describe(err error) string {
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		msg = fmt.Sprintf("%T", err)
	}
	if errors.Is(err, context.DeadlineExceeded) && !strings.Contains(msg, "timeout") {
		msg = "timeout: " + msg
	}
	return msg
}

// traceSummary is the first lines of a panic stack, or the chain of wrapped
// error types for ordinary failures.
func traceSummary(err error) string {
	var pe *PanicError
	if errors.As(err, &pe) {
		lines := strings.Split(strings.TrimSpace(pe.Stack), "\n")
		if len(lines) > maxTraceLines {
			lines = append(lines[:maxTraceLines], "...")
		}
		return strings.Join(lines, "\n")
	}

	var chain []string
	for e := err; e != nil && len(chain) < maxTraceLines; e = errors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T", e))
	}
	return strings.Join(chain, " <- ")
}
