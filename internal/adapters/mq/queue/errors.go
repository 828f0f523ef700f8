package queue

import "errors"

var (
	// ErrClosed is returned when enqueueing on a closed queue.
	ErrClosed = errors.New("queue closed")
	// ErrFull is returned when the queue has no free slot.
	ErrFull = errors.New("queue full")
)
