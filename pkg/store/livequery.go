package store

import (
	"context"
	"sync"
)

// LiveQuery is a derived view over a collection that stays consistent as
// records change. Results refresh inside every commit that touches the
// collection, so an observer never sees a half-applied batch.
type LiveQuery[V any] struct {
	collection *Collection[V]
	predicate  func(id string, v V) bool

	mu      sync.Mutex
	results []Record[V]
	changed bool
	subs    map[*QuerySubscription[V]]bool
}

// QuerySubscription delivers result snapshots over a channel
type QuerySubscription[V any] struct {
	query     *LiveQuery[V]
	ch        chan []Record[V]
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	// mu orders sends against close; a send must never race the channel close
	mu     sync.Mutex
	closed bool
}

// Query creates a live view of all records matching the predicate. Results
// reflect the state at call time and every later commit.
func (c *Collection[V]) Query(predicate func(id string, v V) bool) *LiveQuery[V] {
	q := &LiveQuery[V]{
		collection: c,
		predicate:  predicate,
		subs:       make(map[*QuerySubscription[V]]bool),
	}

	c.store.mu.RLock()
	q.refresh(c.records, c.order)
	c.store.mu.RUnlock()
	q.changed = false

	c.queriesMu.Lock()
	c.queries = append(c.queries, q)
	c.queriesMu.Unlock()
	return q
}

// Results returns the current matching records in collection order
func (q *LiveQuery[V]) Results() []Record[V] {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Record[V], len(q.results))
	copy(out, q.results)
	return out
}

// Count returns the number of matching records
func (q *LiveQuery[V]) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.results)
}

// Subscribe returns a subscription whose channel receives a fresh result
// snapshot after every commit that touches the collection. Sends never
// block; a subscriber that falls behind misses intermediate snapshots, not
// the final one, because each send carries the full current result set.
func (q *LiveQuery[V]) Subscribe(ctx context.Context) *QuerySubscription[V] {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &QuerySubscription[V]{
		query:  q,
		ch:     make(chan []Record[V], 16),
		ctx:    subCtx,
		cancel: cancel,
	}

	q.mu.Lock()
	q.subs[sub] = true
	q.mu.Unlock()

	go func() {
		<-subCtx.Done()
		sub.close()
	}()
	return sub
}

// Updates returns the snapshot channel
func (s *QuerySubscription[V]) Updates() <-chan []Record[V] {
	return s.ch
}

// Unsubscribe detaches the subscription and closes its channel
func (s *QuerySubscription[V]) Unsubscribe() {
	s.cancel()
}

func (s *QuerySubscription[V]) close() {
	s.closeOnce.Do(func() {
		s.query.mu.Lock()
		delete(s.query.subs, s)
		s.query.mu.Unlock()

		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.ch)
	})
}

// send delivers a snapshot without blocking, and never after close
func (s *QuerySubscription[V]) send(snapshot []Record[V]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- snapshot:
	default:
		// Subscriber buffer full; it will catch up on the next commit
	}
}

// refresh recomputes results against the given records. Runs under the
// store's commit lock.
func (q *LiveQuery[V]) refresh(records map[string]V, order []string) {
	results := make([]Record[V], 0)
	for _, id := range order {
		v := records[id]
		if q.predicate == nil || q.predicate(id, v) {
			results = append(results, Record[V]{ID: id, Value: v})
		}
	}

	q.mu.Lock()
	q.results = results
	q.changed = true
	q.mu.Unlock()
}

// publish sends the refreshed snapshot to subscribers. Runs outside the
// commit lock; drops on full buffers rather than blocking a mutation.
func (q *LiveQuery[V]) publish() {
	q.mu.Lock()
	if !q.changed {
		q.mu.Unlock()
		return
	}
	q.changed = false
	snapshot := make([]Record[V], len(q.results))
	copy(snapshot, q.results)
	subs := make([]*QuerySubscription[V], 0, len(q.subs))
	for sub := range q.subs {
		subs = append(subs, sub)
	}
	q.mu.Unlock()

	for _, sub := range subs {
		sub.send(snapshot)
	}
}
