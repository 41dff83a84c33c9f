// Package liberrors contains errors returned by the library.
package liberrors

import (
	"fmt"
)

// ErrMalformedDatagram is returned when a datagram is shorter than the header.
type ErrMalformedDatagram struct {
	Length int
}

// Error implements the error interface.
func (e ErrMalformedDatagram) Error() string {
	return fmt.Sprintf("malformed datagram: length %d is shorter than header", e.Length)
}

// ErrCapacityOverflow is returned when a rate estimator cannot store a sample
// since its ring is full of samples that are still inside the window.
type ErrCapacityOverflow struct {
	Capacity int
}

// Error implements the error interface.
func (e ErrCapacityOverflow) Error() string {
	return fmt.Sprintf("overflow capacity %d", e.Capacity)
}

// ErrImageDiscarded is returned when the image being assembled is abandoned
// because of a gap in packet numbers.
type ErrImageDiscarded struct {
	ImageNumber uint32
	Lost        uint64
}

// Error implements the error interface.
func (e ErrImageDiscarded) Error() string {
	return fmt.Sprintf("discarding image %d since %d packets are missing", e.ImageNumber, e.Lost)
}

// ErrImageTooBig is returned when an image exceeds the maximum allowed size.
type ErrImageTooBig struct {
	Size    int
	MaxSize int
}

// Error implements the error interface.
func (e ErrImageTooBig) Error() string {
	return fmt.Sprintf("image size (%d) is too big, maximum is %d", e.Size, e.MaxSize)
}
