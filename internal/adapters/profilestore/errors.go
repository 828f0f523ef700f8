package profilestore

import "errors"

var (
	// ErrNotFound is returned when an identifier or profile name does not resolve.
	ErrNotFound = errors.New("profile not found")
	// ErrMalformedData is returned when a document parses but violates the schema.
	ErrMalformedData = errors.New("malformed profile data")
	// ErrCorrupt is returned when a document cannot be tokenized at all.
	ErrCorrupt = errors.New("corrupt profile data")
	// ErrInvalidName is returned for identifiers that are empty or contain path separators.
	ErrInvalidName = errors.New("invalid profile identifier")
	// ErrDuplicateName is returned when two identifiers hold the same profile name.
	ErrDuplicateName = errors.New("duplicate profile name")
	// ErrInvalidProfile is returned when a profile fails validation before save or activation.
	ErrInvalidProfile = errors.New("invalid profile")
	// ErrUnsupportedFormat is returned for file extensions without a codec.
	ErrUnsupportedFormat = errors.New("unsupported profile format")
)
