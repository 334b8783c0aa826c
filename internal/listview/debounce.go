package listview

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet period applied to search input before it is
// turned into a filter.
const DefaultDebounce = 500 * time.Millisecond

// Debounced delays calls to fn until no new call has arrived for the
// configured delay. Only the argument of the last call is delivered.
type Debounced[A any] struct {
	delay time.Duration
	fn    func(A)

	mu      sync.Mutex
	timer   *time.Timer
	pending A
	armed   bool
	gen     uint64
}

// Debounce returns a Debounced that calls fn after delay of quiet.
func Debounce[A any](fn func(A), delay time.Duration) *Debounced[A] {
	if delay < 0 {
		delay = 0
	}
	return &Debounced[A]{delay: delay, fn: fn}
}

// Call schedules fn(arg), replacing any call still waiting.
func (d *Debounced[A]) Call(arg A) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = arg
	d.armed = true
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Flush runs the waiting call now, if there is one.
func (d *Debounced[A]) Flush() {
	d.mu.Lock()
	if !d.armed {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	arg := d.take()
	d.mu.Unlock()

	d.fn(arg)
}

// Cancel drops the waiting call.
func (d *Debounced[A]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.take()
}

// Pending reports whether a call is waiting.
func (d *Debounced[A]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed
}

func (d *Debounced[A]) fire(gen uint64) {
	d.mu.Lock()
	if !d.armed || gen != d.gen {
		d.mu.Unlock()
		return
	}
	arg := d.take()
	d.mu.Unlock()

	d.fn(arg)
}

// take clears the waiting call and returns its argument. d.mu must be held.
func (d *Debounced[A]) take() A {
	var zero A
	arg := d.pending
	d.pending = zero
	d.armed = false
	d.gen++
	d.timer = nil
	return arg
}
