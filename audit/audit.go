package audit

import (
	"context"
	"errors"
)

// Audit is one pluggable check. Run may read any Visit field but writes only
// the fields it owns; it returns an error when it cannot complete.
type Audit interface {
	Name() string
	Run(ctx context.Context, v *Visit) error
}

// ErrPrerequisite is returned by audits whose input field was never written.
var ErrPrerequisite = errors.New("audit: prerequisite missing")

// Func adapts a function to the Audit interface.
type Func struct {
	name string
	fn   func(ctx context.Context, v *Visit) error
}

// NewFunc returns an Audit named name that calls fn.
func NewFunc(name string, fn func(ctx context.Context, v *Visit) error) *Func {
	return &Func{name: name, fn: fn}
}

func (f *Func) Name() string { return f.name }

func (f *Func) Run(ctx context.Context, v *Visit) error {
	return f.fn(ctx, v)
}
