package dispatch

import "github.com/okian/padmap/pkg/logger"

// Option applies a configuration option to the Dispatcher.
type Option func(*Dispatcher)

// WithMacroResolver sets the registry used by RunMacro actions. Without one,
// every RunMacro fails with ErrMacroUnresolved.
func WithMacroResolver(r MacroResolver) Option {
	return func(d *Dispatcher) {
		d.macros = r
	}
}

// WithMaxMacroDepth bounds macro nesting.
func WithMaxMacroDepth(depth int) Option {
	return func(d *Dispatcher) {
		if depth > 0 {
			d.maxDepth = depth
		}
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}
