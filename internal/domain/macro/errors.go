package macro

import "errors"

var (
	// ErrNotFound is returned when a macro name does not resolve.
	ErrNotFound = errors.New("macro not found")
	// ErrDuplicate is returned when a macro set names the same macro twice.
	ErrDuplicate = errors.New("duplicate macro")
	// ErrInvalidMacro is returned for macros with no name or invalid steps.
	ErrInvalidMacro = errors.New("invalid macro")
)
