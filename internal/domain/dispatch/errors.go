package dispatch

import "errors"

var (
	// ErrSinkFailure wraps errors returned by the output sink.
	ErrSinkFailure = errors.New("sink failure")
	// ErrSourceMismatch is returned when an action needs a value from the
	// triggering event that the event does not carry.
	ErrSourceMismatch = errors.New("source value mismatch")
	// ErrMacroUnresolved is returned when a RunMacro name cannot be resolved.
	ErrMacroUnresolved = errors.New("macro unresolved")
	// ErrMacroDepth is returned when macros nest too deeply.
	ErrMacroDepth = errors.New("macro nesting too deep")
	// ErrUnknownAction is returned for action variants the dispatcher does not know.
	ErrUnknownAction = errors.New("unknown action")
)
