package store

import "sync"

// Flush is the completion signal of a mutation. The in-memory change is
// visible as soon as the mutation returns; the Flush settles once the change
// has been durably persisted, or failed to be.
type Flush struct {
	mu      sync.Mutex
	pending int
	armed   bool
	settled bool
	err     error
	ch      chan struct{}
}

func newFlush() *Flush {
	return &Flush{ch: make(chan struct{})}
}

// Settled returns a flush that has already completed without error.
// Mutations that touch no persisted collection return one so callers can
// Wait uniformly.
func Settled() *Flush {
	f := newFlush()
	f.settle()
	return f
}

// Done returns a channel closed when the flush has settled
func (f *Flush) Done() <-chan struct{} {
	return f.ch
}

// Err returns the persistence error, if any. Only meaningful after Done.
func (f *Flush) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Wait blocks until the flush settles and returns its error
func (f *Flush) Wait() error {
	<-f.ch
	return f.Err()
}

// add registers n pending durable writes
func (f *Flush) add(n int) {
	f.mu.Lock()
	f.pending += n
	f.mu.Unlock()
}

// done records completion of one pending write
func (f *Flush) done(err error) {
	f.mu.Lock()
	if err != nil && f.err == nil {
		f.err = err
	}
	f.pending--
	shouldSettle := f.armed && f.pending <= 0 && !f.settled
	if shouldSettle {
		f.settled = true
	}
	f.mu.Unlock()
	if shouldSettle {
		close(f.ch)
	}
}

// fail records a write that never started
func (f *Flush) fail(err error) {
	f.add(1)
	f.done(err)
}

// settle arms the flush once all writes for its batch are enqueued; a batch
// with nothing to persist settles immediately
func (f *Flush) settle() {
	f.mu.Lock()
	f.armed = true
	shouldSettle := f.pending <= 0 && !f.settled
	if shouldSettle {
		f.settled = true
	}
	f.mu.Unlock()
	if shouldSettle {
		close(f.ch)
	}
}
