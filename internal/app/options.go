package service

import (
	"time"

	"github.com/okian/padmap/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLaneCount sets the number of device lanes.
func WithLaneCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.laneCount = count
		}
	}
}

// WithQueueSize sets the capacity of each lane's event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithProfilesDir sets the directory profiles are loaded from and saved to.
func WithProfilesDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.profilesDir = dir
		}
	}
}

// WithActiveProfile names the profile activated at startup.
func WithActiveProfile(name string) Option {
	return func(s *Service) {
		s.activeProfile = name
	}
}

// WithProfileFormat sets the document format of newly saved profiles.
func WithProfileFormat(format string) Option {
	return func(s *Service) {
		if format != "" {
			s.profileFormat = format
		}
	}
}

// WithWatchProfiles toggles reloading profiles when their files change.
func WithWatchProfiles(enabled bool) Option {
	return func(s *Service) {
		s.watchProfiles = enabled
	}
}

// WithWatchDebounce sets how long file changes settle before a reload.
func WithWatchDebounce(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.watchDebounce = d
		}
	}
}

// WithMacrosFile sets the macro document loaded at startup.
func WithMacrosFile(path string) Option {
	return func(s *Service) {
		s.macrosFile = path
	}
}

// WithPadName labels the virtual output device.
func WithPadName(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.padName = name
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
