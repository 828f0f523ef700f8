package pad

import "errors"

var (
	// ErrNotInitialized is returned for updates outside a session.
	ErrNotInitialized = errors.New("virtual pad not initialized")
	// ErrUnsupported is returned for controls the pad does not have.
	ErrUnsupported = errors.New("unsupported control")
	// ErrOutOfRange is returned for axis values the report cannot carry.
	ErrOutOfRange = errors.New("axis value out of range")
)
