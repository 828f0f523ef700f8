package watch

import (
	"time"

	"github.com/okian/padmap/pkg/logger"
)

// Option applies a configuration option to the Watcher.
type Option func(*Watcher)

// WithDebounce sets how long the directory must be quiet before reloading.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the watcher logger.
func WithLogger(l logger.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// WithReloadHook is called after every reload attempt.
func WithReloadHook(fn func(path string, err error)) Option {
	return func(w *Watcher) {
		w.reloaded = fn
	}
}
