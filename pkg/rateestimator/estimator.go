// Package rateestimator contains a sliding-window rate estimator.
package rateestimator

import (
	"fmt"
	"time"

	"github.com/bluenviron/gocamstream/pkg/liberrors"
)

type sample struct {
	timestamp int64
	weight    int64
}

// Estimator estimates a rate over a sliding time window.
// Samples are weighted: the weight is the byte count when measuring
// bandwidth and 1 when measuring the frame rate.
//
// Samples must be added with non-decreasing timestamps.
// Estimator is not safe for concurrent use.
type Estimator struct {
	// Width of the window.
	Window time.Duration

	// Maximum number of samples inside the window.
	Capacity int

	windowMs int64
	samples  []sample
	head     int
	tail     int
	sum      int64
	rate     float64
}

// New allocates an Estimator.
func New(window time.Duration, capacity int) (*Estimator, error) {
	e := &Estimator{
		Window:   window,
		Capacity: capacity,
	}
	err := e.Initialize()
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Initialize initializes Estimator.
func (e *Estimator) Initialize() error {
	if e.Window <= 0 {
		return fmt.Errorf("invalid window: %v", e.Window)
	}
	if e.Capacity <= 0 {
		return fmt.Errorf("invalid capacity: %d", e.Capacity)
	}

	e.windowMs = e.Window.Milliseconds()

	// one slot is always left empty to tell a full ring from an empty one.
	e.samples = make([]sample, e.Capacity+1)

	return nil
}

func (e *Estimator) next(i int) int {
	return (i + 1) % len(e.samples)
}

func (e *Estimator) evict(now int64) {
	for e.head != e.tail {
		s := e.samples[e.head]
		if s.timestamp+e.windowMs >= now {
			return
		}

		e.sum -= s.weight
		e.head = e.next(e.head)
	}
}

func (e *Estimator) span() int64 {
	if e.head == e.tail {
		return 0
	}

	last := (e.tail + len(e.samples) - 1) % len(e.samples)
	return e.samples[last].timestamp - e.samples[e.head].timestamp
}

// AddSample adds a sample taken at the given time, in milliseconds of a
// monotonic clock, and updates the rate.
// It returns liberrors.ErrCapacityOverflow when the window already contains
// Capacity samples. In that case the sample is not recorded.
func (e *Estimator) AddSample(now int64, weight int64) error {
	e.evict(now)

	nextTail := e.next(e.tail)
	if nextTail == e.head {
		return liberrors.ErrCapacityOverflow{Capacity: e.Capacity}
	}

	e.samples[e.tail] = sample{
		timestamp: now,
		weight:    weight,
	}
	e.tail = nextTail
	e.sum += weight

	span := e.span()
	if span == 0 {
		e.rate = 0
	} else {
		e.rate = 1000 * float64(e.sum) / float64(span)
	}

	return nil
}

// Reset discards all samples.
// Window and capacity are kept.
func (e *Estimator) Reset() {
	e.head = e.tail
	e.sum = 0
	e.rate = 0
}

// Rate returns the rate, in weight units per second.
func (e *Estimator) Rate() float64 {
	return e.rate
}

// Len returns the number of samples inside the window.
func (e *Estimator) Len() int {
	return (e.tail - e.head + len(e.samples)) % len(e.samples)
}

// Sum returns the sum of the weights of samples inside the window.
func (e *Estimator) Sum() int64 {
	return e.sum
}
