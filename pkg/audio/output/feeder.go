// ABOUTME: Callback feeder shared by callback-driven backends
// ABOUTME: Hands submitted samples to the audio callback and signals completion
package output

import (
	"fmt"
	"sync"
	"time"
)

// feeder bridges a blocking Write to a pull-style audio callback.
// Write submits a slice and waits; the callback copies from it, zero-filling
// on underrun, and signals once the slice is fully consumed. The submitted
// slice is only read, never modified.
type feeder struct {
	mu      sync.Mutex
	pending []float32
	done    chan struct{}
	closed  bool
	started bool
	onFirst func(time.Time)

	// drain is the number of callbacks to wait after the last sample is
	// copied, so samples still queued in the device buffer get played
	drain     int
	drainLeft int
}

func newFeeder(onFirst func(time.Time)) *feeder {
	return &feeder{onFirst: onFirst}
}

// submit queues samples for the callback. The returned channel is closed
// once they have all been consumed or the feeder is closed.
func (f *feeder) submit(samples []float32) (<-chan struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrStreamClosed
	}
	if f.done != nil {
		return nil, fmt.Errorf("write already in progress")
	}

	done := make(chan struct{})
	if len(samples) == 0 {
		close(done)
		return done, nil
	}

	f.pending = samples
	f.done = done
	return done, nil
}

// write submits samples and blocks until the callback has consumed them
func (f *feeder) write(samples []float32) error {
	done, err := f.submit(samples)
	if err != nil {
		return err
	}
	<-done

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed && len(f.pending) > 0 {
		return ErrStreamClosed
	}
	return nil
}

// fill is called from the audio callback to fill out.
// It returns the number of submitted samples copied.
func (f *feeder) fill(out []float32) int {
	f.mu.Lock()

	n := copy(out, f.pending)
	f.pending = f.pending[n:]

	// Zero-fill remaining if underrun
	for i := n; i < len(out); i++ {
		out[i] = 0
	}

	// onFirst runs before done is closed so a returning Write always
	// observes it; it must not block
	if n > 0 && !f.started {
		f.started = true
		if f.onFirst != nil {
			f.onFirst(time.Now())
		}
	}

	if f.done != nil && len(f.pending) == 0 {
		if n > 0 {
			f.drainLeft = f.drain
		} else {
			f.drainLeft--
		}
		if f.drainLeft <= 0 {
			close(f.done)
			f.done = nil
		}
	}
	f.mu.Unlock()

	return n
}

// close unblocks any waiting write and rejects future ones
func (f *feeder) close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	if f.done != nil {
		close(f.done)
		f.done = nil
	}
}
