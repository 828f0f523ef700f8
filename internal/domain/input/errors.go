package input

import (
	"errors"
	"fmt"
)

// ErrValidation marks events whose payload disagrees with their kind.
var ErrValidation = errors.New("invalid input event")

// ValidationError describes a kind/payload mismatch.
type ValidationError struct {
	Kind    Kind
	Payload Kind
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.Payload != 0 {
		return fmt.Sprintf("%s: %s (kind %s, payload %s)", ErrValidation, e.Reason, e.Kind, e.Payload)
	}
	return fmt.Sprintf("%s: %s (kind %s)", ErrValidation, e.Reason, e.Kind)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }
