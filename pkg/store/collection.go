package store

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Record pairs a key with its value for bulk inserts and query results
type Record[V any] struct {
	ID    string
	Value V
}

// Collection is a keyed, persisted set of records. All access is serialized
// through the owning Store's commit lock; values are stored as given, so
// callers that hand out pointers must treat them as immutable or clone.
type Collection[V any] struct {
	store   *Store
	name    string
	backend Backend

	records map[string]V
	order   []string // insertion order, drives Keys/Values determinism

	queriesMu sync.Mutex
	queries   []*LiveQuery[V]

	pendingSnapshot []byte
}

// NewCollection creates a collection bound to a store and loads any snapshot
// the backend holds
func NewCollection[V any](s *Store, name string, backend Backend) (*Collection[V], error) {
	c := &Collection[V]{
		store:   s,
		name:    name,
		backend: backend,
		records: make(map[string]V),
		order:   make([]string, 0),
	}

	data, err := backend.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: loading %s: %v", ErrPersistenceFailure, name, err)
	}
	if len(data) > 0 {
		var snapshot snapshotFile[V]
		if err := json.Unmarshal(data, &snapshot); err != nil {
			return nil, fmt.Errorf("%w: decoding %s snapshot: %v", ErrPersistenceFailure, name, err)
		}
		for _, rec := range snapshot.Records {
			c.records[rec.ID] = rec.Value
			c.order = append(c.order, rec.ID)
		}
	}
	return c, nil
}

// snapshotFile is the durable wire shape of a collection
type snapshotFile[V any] struct {
	Records []Record[V] `json:"records"`
}

// Get returns the record for an id
func (c *Collection[V]) Get(id string) (V, bool) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	v, ok := c.records[id]
	return v, ok
}

// Has reports whether an id exists
func (c *Collection[V]) Has(id string) bool {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	_, ok := c.records[id]
	return ok
}

// Len returns the number of records
func (c *Collection[V]) Len() int {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	return len(c.records)
}

// Keys returns all ids in insertion order
func (c *Collection[V]) Keys() []string {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Values returns all records in insertion order
func (c *Collection[V]) Values() []V {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	return c.valuesLocked()
}

func (c *Collection[V]) valuesLocked() []V {
	out := make([]V, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.records[id])
	}
	return out
}

// Insert adds or replaces records as one batch
func (c *Collection[V]) Insert(recs ...Record[V]) *Flush {
	return c.store.Batch(func(tx *Tx) {
		c.TxInsert(tx, recs...)
	})
}

// Update applies a mutator to an existing record
func (c *Collection[V]) Update(id string, mutate func(V) V) (*Flush, error) {
	var updateErr error
	flush := c.store.Batch(func(tx *Tx) {
		updateErr = c.TxUpdate(tx, id, mutate)
	})
	if updateErr != nil {
		return nil, updateErr
	}
	return flush, nil
}

// Delete removes records by id; absent ids are ignored
func (c *Collection[V]) Delete(ids ...string) *Flush {
	return c.store.Batch(func(tx *Tx) {
		c.TxDelete(tx, ids...)
	})
}

// Replace swaps the entire contents in one commit (delete-all-then-insert-all)
func (c *Collection[V]) Replace(recs []Record[V]) *Flush {
	return c.store.Batch(func(tx *Tx) {
		c.TxReplace(tx, recs)
	})
}

// TxGet reads a record inside a batch
func (c *Collection[V]) TxGet(tx *Tx, id string) (V, bool) {
	tx.mustBeActive()
	v, ok := c.records[id]
	return v, ok
}

// TxKeys lists ids inside a batch, in insertion order
func (c *Collection[V]) TxKeys(tx *Tx) []string {
	tx.mustBeActive()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// TxValues lists records inside a batch, in insertion order
func (c *Collection[V]) TxValues(tx *Tx) []V {
	tx.mustBeActive()
	return c.valuesLocked()
}

// TxInsert adds or replaces records inside a batch
func (c *Collection[V]) TxInsert(tx *Tx, recs ...Record[V]) {
	tx.mustBeActive()
	for _, rec := range recs {
		if _, exists := c.records[rec.ID]; !exists {
			c.order = append(c.order, rec.ID)
		}
		c.records[rec.ID] = rec.Value
	}
	c.markDirty(tx, "insert", len(recs))
}

// TxUpdate applies a mutator to an existing record inside a batch
func (c *Collection[V]) TxUpdate(tx *Tx, id string, mutate func(V) V) error {
	tx.mustBeActive()
	v, ok := c.records[id]
	if !ok {
		return fmt.Errorf("record %q not found in %s", id, c.name)
	}
	c.records[id] = mutate(v)
	c.markDirty(tx, "update", 1)
	return nil
}

// TxDelete removes records inside a batch; absent ids are ignored
func (c *Collection[V]) TxDelete(tx *Tx, ids ...string) {
	tx.mustBeActive()
	removed := 0
	for _, id := range ids {
		if _, exists := c.records[id]; !exists {
			continue
		}
		delete(c.records, id)
		for i, ordered := range c.order {
			if ordered == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
		removed++
	}
	if removed > 0 {
		c.markDirty(tx, "delete", removed)
	}
}

// TxReplace swaps the entire contents inside a batch
func (c *Collection[V]) TxReplace(tx *Tx, recs []Record[V]) {
	tx.mustBeActive()
	c.records = make(map[string]V, len(recs))
	c.order = c.order[:0]
	for _, rec := range recs {
		if _, exists := c.records[rec.ID]; !exists {
			c.order = append(c.order, rec.ID)
		}
		c.records[rec.ID] = rec.Value
	}
	c.markDirty(tx, "replace", len(recs))
}

func (c *Collection[V]) markDirty(tx *Tx, op string, n int) {
	tx.dirty[c] = true
	c.store.metrics.RecordMutation(c.name, op, n)
}

// commit encodes the snapshot and refreshes live query results. Runs under
// the store's commit lock.
func (c *Collection[V]) commit(tx *Tx) {
	snapshot := snapshotFile[V]{Records: make([]Record[V], 0, len(c.order))}
	for _, id := range c.order {
		snapshot.Records = append(snapshot.Records, Record[V]{ID: id, Value: c.records[id]})
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		// A record that cannot marshal is a programming error; surface it on
		// the flush rather than panicking mid-commit
		tx.flush.fail(fmt.Errorf("%w: encoding %s snapshot: %v", ErrPersistenceFailure, c.name, err))
	} else {
		c.store.enqueue(writeRequest{backend: c.backend, name: c.name, snapshot: data, flush: tx.flush})
	}

	c.queriesMu.Lock()
	queries := make([]*LiveQuery[V], len(c.queries))
	copy(queries, c.queries)
	c.queriesMu.Unlock()
	for _, q := range queries {
		q.refresh(c.records, c.order)
	}
}

// notify publishes refreshed query results to subscribers. Runs outside the
// commit lock so a slow subscriber cannot stall a mutation.
func (c *Collection[V]) notify() {
	c.queriesMu.Lock()
	queries := make([]*LiveQuery[V], len(c.queries))
	copy(queries, c.queries)
	c.queriesMu.Unlock()
	for _, q := range queries {
		q.publish()
	}
}

func (tx *Tx) mustBeActive() {
	if !tx.active {
		panic("store: Tx used outside its Batch")
	}
}
