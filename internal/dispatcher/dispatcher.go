// Package dispatcher contains a routine that runs callbacks in order,
// detached from the routine that produces them.
package dispatcher

import (
	"github.com/bluenviron/gocamstream/pkg/ringbuffer"
)

// Dispatcher is an asynchronous queue of callbacks.
// It allows to detach the routine that is reading the network
// from the routines that consume what has been read.
type Dispatcher struct {
	// Size of the queue. It must be a power of two.
	QueueSize int

	running bool
	buffer  *ringbuffer.RingBuffer[func()]

	done chan struct{}
}

// Initialize initializes Dispatcher.
func (d *Dispatcher) Initialize() error {
	var err error
	d.buffer, err = ringbuffer.New[func()](uint64(d.QueueSize))
	if err != nil {
		return err
	}

	d.done = make(chan struct{})
	return nil
}

// Close closes the dispatcher.
// Callbacks that have not been run yet are discarded.
func (d *Dispatcher) Close() {
	d.buffer.Close()

	if d.running {
		<-d.done
	}
}

// Start starts the dispatcher.
func (d *Dispatcher) Start() {
	d.running = true
	go d.run()
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for {
		cb, ok := d.buffer.Pull()
		if !ok {
			return
		}

		cb()
	}
}

// Push appends a callback to the queue.
// It returns false when the queue is full.
func (d *Dispatcher) Push(cb func()) bool {
	return d.buffer.Push(cb)
}
