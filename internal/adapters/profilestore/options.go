package profilestore

import "github.com/okian/padmap/pkg/logger"

// Option applies a configuration option to the Store.
type Option func(*Store) error

// WithFormat selects the format of newly created profile files: json, yaml
// or toml.
func WithFormat(format string) Option {
	return func(s *Store) error {
		ext, err := extensionFor(format)
		if err != nil {
			return err
		}
		s.ext = ext
		return nil
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) error {
		if l != nil {
			s.log = l
		}
		return nil
	}
}
