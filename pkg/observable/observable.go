// Package observable contains values that notify subscribers when they change.
package observable

import (
	"sync"
)

// Reader is the read-only side of a Value.
type Reader[T comparable] interface {
	Get() T
	Subscribe(func(T)) func()
}

// Value is a value that can be read by multiple routines and
// notifies subscribers when it changes.
// The zero value is ready for use.
type Value[T comparable] struct {
	mutex     sync.Mutex
	value     T
	nextID    uint64
	observers map[uint64]func(T)
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	return v.value
}

// Set sets the value.
// If it differs from the current one, subscribers are called
// on the calling routine, in no particular order.
// It returns whether the value has changed.
func (v *Value[T]) Set(value T) bool {
	v.mutex.Lock()

	if v.value == value {
		v.mutex.Unlock()
		return false
	}

	v.value = value

	observers := make([]func(T), 0, len(v.observers))
	for _, cb := range v.observers {
		observers = append(observers, cb)
	}

	v.mutex.Unlock()

	for _, cb := range observers {
		cb(value)
	}

	return true
}

// Subscribe adds a subscriber that is called when the value changes.
// It returns a function that removes the subscriber.
func (v *Value[T]) Subscribe(cb func(T)) func() {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	if v.observers == nil {
		v.observers = make(map[uint64]func(T))
	}

	id := v.nextID
	v.nextID++
	v.observers[id] = cb

	return func() {
		v.mutex.Lock()
		defer v.mutex.Unlock()

		delete(v.observers, id)
	}
}
