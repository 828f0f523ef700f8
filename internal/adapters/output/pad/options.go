package pad

import (
	"time"

	"github.com/okian/padmap/pkg/logger"
)

// Option applies a configuration option to the Pad.
type Option func(*Pad)

// WithLogger sets the pad logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pad) {
		if l != nil {
			p.log = l
		}
	}
}

// WithClock overrides the time source stamped on changes.
func WithClock(now func() time.Time) Option {
	return func(p *Pad) {
		if now != nil {
			p.now = now
		}
	}
}
