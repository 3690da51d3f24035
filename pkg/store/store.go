// Package store implements the reactive collection store underneath the
// network graph: keyed collections of records with synchronous in-memory
// mutations, live queries that re-evaluate as records change, and
// asynchronous durable persistence through a pluggable backend.
//
// All collections belonging to one Store share a single commit lock, so a
// multi-collection batch (delete a node and its edges) is observed atomically
// by every live query. In-memory state is authoritative: a failed persist
// surfaces on the mutation's Flush, never by rolling back memory.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/flownetio/flownet/pkg/logging"
	"github.com/flownetio/flownet/pkg/metrics"
)

// ErrPersistenceFailure marks a durable write or read rejected by the backing
// store. The in-memory mutation it belongs to has already taken effect.
var ErrPersistenceFailure = fmt.Errorf("persistence failure")

// Store serializes commits across a set of collections and owns the single
// background writer that flushes snapshots to the collection backends.
type Store struct {
	mu        sync.RWMutex
	writer    chan writeRequest
	done      chan struct{}
	closeOnce sync.Once
	logger    logging.Logger
	metrics   *metrics.Registry
}

// committable is the store-facing face of a Collection
type committable interface {
	commit(tx *Tx)
	notify()
}

// writeRequest is one pending durable flush
type writeRequest struct {
	backend  Backend
	name     string
	snapshot []byte
	flush    *Flush
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the store logger
func WithLogger(logger logging.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithMetrics sets the metrics registry
func WithMetrics(reg *metrics.Registry) Option {
	return func(s *Store) { s.metrics = reg }
}

// New creates a Store and starts its writer goroutine
func New(opts ...Option) *Store {
	s := &Store{
		writer: make(chan writeRequest, 256),
		done:   make(chan struct{}),
		logger: logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.runWriter()
	return s
}

// Tx is a single atomic mutation batch. It is only valid inside the function
// passed to Batch; collection mutations take it as their first argument.
type Tx struct {
	store  *Store
	active bool
	dirty  map[committable]bool
	flush  *Flush
}

// Batch runs fn as one atomic commit. Every mutation made through the Tx is
// observed together by live queries, and the returned Flush settles when all
// touched collections have been durably persisted (or any persist failed).
func (s *Store) Batch(fn func(tx *Tx)) *Flush {
	flush := newFlush()

	s.mu.Lock()
	tx := &Tx{store: s, active: true, dirty: make(map[committable]bool), flush: flush}
	fn(tx)
	tx.active = false

	// Commit: snapshot dirty collections and their query results under the lock
	for c := range tx.dirty {
		c.commit(tx)
	}
	s.mu.Unlock()

	// Notify subscribers outside the lock
	for c := range tx.dirty {
		c.notify()
	}

	flush.settle()
	return flush
}

// enqueue hands a snapshot to the background writer. Called during commit.
func (s *Store) enqueue(req writeRequest) {
	select {
	case <-s.done:
		req.flush.fail(fmt.Errorf("%w: store closed", ErrPersistenceFailure))
		return
	default:
	}
	req.flush.add(1)
	s.writer <- req
}

// runWriter drains the write queue, persisting snapshots in commit order
func (s *Store) runWriter() {
	for {
		select {
		case req := <-s.writer:
			s.persist(req)
		case <-s.done:
			// Drain whatever is already queued before exiting
			for {
				select {
				case req := <-s.writer:
					s.persist(req)
				default:
					return
				}
			}
		}
	}
}

func (s *Store) persist(req writeRequest) {
	start := time.Now()
	err := req.backend.Persist(req.snapshot)
	s.metrics.RecordFlushDuration(req.name, time.Since(start))
	if err != nil {
		wrapped := fmt.Errorf("%w: %s: %v", ErrPersistenceFailure, req.name, err)
		s.logger.Error("durable write rejected",
			logging.String("collection", req.name),
			logging.Error(err))
		s.metrics.RecordFlush(req.name, "error")
		req.flush.fail(wrapped)
		return
	}
	s.metrics.RecordFlush(req.name, "ok")
	req.flush.done(nil)
}

// Close stops the writer after draining queued flushes. Collections remain
// readable and editable in memory; further mutations fail their flushes.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		// Take the commit lock so no batch is mid-enqueue when done closes
		s.mu.Lock()
		close(s.done)
		s.mu.Unlock()
	})
}
