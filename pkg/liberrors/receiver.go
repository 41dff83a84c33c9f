package liberrors

import (
	"fmt"
)

// ErrSocketFailure is returned when the UDP socket cannot be bound or read.
// It is fatal for the receive loop.
type ErrSocketFailure struct {
	Err error
}

// Error implements the error interface.
func (e ErrSocketFailure) Error() string {
	return fmt.Sprintf("socket failure: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e ErrSocketFailure) Unwrap() error {
	return e.Err
}

// ErrDatagramTooBig is returned when a datagram fills the whole read buffer
// and has therefore been truncated.
type ErrDatagramTooBig struct {
	MaxSize int
}

// Error implements the error interface.
func (e ErrDatagramTooBig) Error() string {
	return fmt.Sprintf("datagram is too big, maximum is %d", e.MaxSize)
}

// ErrDispatchQueueFull is returned when a snapshot cannot be queued
// because consumers are too slow.
type ErrDispatchQueueFull struct{}

// Error implements the error interface.
func (e ErrDispatchQueueFull) Error() string {
	return "dispatch queue is full, snapshot discarded"
}
