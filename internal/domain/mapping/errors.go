package mapping

import "errors"

// ErrInvalidRule marks rules or profiles that violate the model.
var ErrInvalidRule = errors.New("invalid rule")
