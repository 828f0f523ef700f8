// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config populated with defaults.
// - Load(ctx) layers a YAML file and environment variables on top of them.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"fmt"
	"runtime"
	"strings"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ProfilesDir is the directory holding persisted profiles.
	ProfilesDir string `koanf:"profiles_dir"`

	// ActiveProfile names the profile activated at startup. When empty the
	// first profile by name is activated.
	ActiveProfile string `koanf:"active_profile"`

	// ProfileFormat is the document format used when saving: json, yaml or toml.
	ProfileFormat string `koanf:"profile_format"`

	// WatchProfiles reloads profiles when their files change.
	WatchProfiles bool `koanf:"watch_profiles"`

	// MacrosFile optionally points at a macro document loaded into the registry.
	MacrosFile string `koanf:"macros_file"`

	// EventQueueSize bounds each lane's in-memory event queue.
	EventQueueSize int `koanf:"queue_size"`

	// LaneCount sets the number of device lanes. Events of one device always
	// land on the same lane.
	LaneCount int `koanf:"lane_count"`

	// DedupeSize sets the size of the ingest deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// PadName labels the virtual output device.
	PadName string `koanf:"pad_name"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		LogFormat:      "text",
		Addr:           ":9080",
		ProfilesDir:    "profiles",
		ProfileFormat:  "json",
		WatchProfiles:  true,
		EventQueueSize: 4096,
		LaneCount:      runtime.NumCPU(),
		DedupeSize:     65_536,
		PadName:        "xbox360",
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.ProfilesDir) == "":
		return fmt.Errorf("%w: profiles_dir must not be empty", ErrInvalidConfig)
	case c.EventQueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.LaneCount < 1:
		return fmt.Errorf("%w: lane_count must be positive", ErrInvalidConfig)
	}
	switch strings.ToLower(c.ProfileFormat) {
	case "json", "yaml", "yml", "toml":
	default:
		return fmt.Errorf("%w: unknown profile_format %q", ErrInvalidConfig, c.ProfileFormat)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}
