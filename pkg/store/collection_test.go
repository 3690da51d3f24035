package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testRecord struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestCollection(t *testing.T) (*Store, *Collection[testRecord], *MemoryBackend) {
	t.Helper()
	s := New()
	t.Cleanup(s.Close)
	backend := NewMemoryBackend()
	c, err := NewCollection[testRecord](s, "test", backend)
	require.NoError(t, err)
	return s, c, backend
}

func TestInsertGetDelete(t *testing.T) {
	_, c, _ := newTestCollection(t)

	flush := c.Insert(Record[testRecord]{ID: "a", Value: testRecord{Name: "first", Count: 1}})
	require.NoError(t, flush.Wait())

	got, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, "first", got.Name)
	require.True(t, c.Has("a"))
	require.False(t, c.Has("b"))

	require.NoError(t, c.Delete("a").Wait())
	require.False(t, c.Has("a"))

	// Deleting an absent id is a no-op
	require.NoError(t, c.Delete("a").Wait())
}

func TestUpdateMutator(t *testing.T) {
	_, c, _ := newTestCollection(t)
	require.NoError(t, c.Insert(Record[testRecord]{ID: "a", Value: testRecord{Count: 1}}).Wait())

	flush, err := c.Update("a", func(v testRecord) testRecord {
		v.Count++
		return v
	})
	require.NoError(t, err)
	require.NoError(t, flush.Wait())

	got, _ := c.Get("a")
	require.Equal(t, 2, got.Count)

	_, err = c.Update("missing", func(v testRecord) testRecord { return v })
	require.Error(t, err)
}

func TestKeysValuesInsertionOrder(t *testing.T) {
	_, c, _ := newTestCollection(t)
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, c.Insert(Record[testRecord]{ID: id, Value: testRecord{Name: id}}).Wait())
	}

	require.Equal(t, []string{"c", "a", "b"}, c.Keys())

	// Re-inserting keeps the original position
	require.NoError(t, c.Insert(Record[testRecord]{ID: "a", Value: testRecord{Name: "a2"}}).Wait())
	require.Equal(t, []string{"c", "a", "b"}, c.Keys())
	values := c.Values()
	require.Equal(t, "a2", values[1].Name)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s, c, backend := newTestCollection(t)
	require.NoError(t, c.Insert(
		Record[testRecord]{ID: "a", Value: testRecord{Name: "x", Count: 1}},
		Record[testRecord]{ID: "b", Value: testRecord{Name: "y", Count: 2}},
	).Wait())

	// A fresh collection over the same backend sees the persisted records
	reloaded, err := NewCollection[testRecord](s, "test", backend)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, reloaded.Keys())
	got, ok := reloaded.Get("b")
	require.True(t, ok)
	require.Equal(t, 2, got.Count)
}

func TestPersistenceFailureKeepsMemoryAuthoritative(t *testing.T) {
	_, c, backend := newTestCollection(t)
	backend.FailWrites = errors.New("disk full")

	flush := c.Insert(Record[testRecord]{ID: "a", Value: testRecord{Name: "kept"}})
	err := flush.Wait()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrPersistenceFailure)

	// The in-memory write survives the failed persist
	got, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, "kept", got.Name)

	// Recovery: next write persists again
	backend.FailWrites = nil
	require.NoError(t, c.Insert(Record[testRecord]{ID: "b", Value: testRecord{}}).Wait())
}

func TestBatchIsObservedAtomically(t *testing.T) {
	s, c, _ := newTestCollection(t)
	require.NoError(t, c.Insert(Record[testRecord]{ID: "a", Value: testRecord{}}).Wait())

	q := c.Query(nil)
	sub := q.Subscribe(context.Background())
	defer sub.Unsubscribe()

	// Delete one record and insert two others in one batch
	flush := s.Batch(func(tx *Tx) {
		c.TxDelete(tx, "a")
		c.TxInsert(tx,
			Record[testRecord]{ID: "b", Value: testRecord{}},
			Record[testRecord]{ID: "c", Value: testRecord{}},
		)
	})
	require.NoError(t, flush.Wait())

	select {
	case snapshot := <-sub.Updates():
		// The observer sees only the final state, never the intermediate
		ids := make([]string, 0, len(snapshot))
		for _, rec := range snapshot {
			ids = append(ids, rec.ID)
		}
		require.Equal(t, []string{"b", "c"}, ids)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestUnsubscribeDuringCommits(t *testing.T) {
	_, c, _ := newTestCollection(t)
	q := c.Query(nil)

	// Tearing a subscription down mid-publish must never panic
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			id := fmt.Sprintf("r%d", i)
			c.Insert(Record[testRecord]{ID: id, Value: testRecord{Count: i}})
		}
	}()

	for i := 0; i < 50; i++ {
		sub := q.Subscribe(context.Background())
		sub.Unsubscribe()
	}
	<-done

	// A closed subscription's channel drains without further deliveries
	sub := q.Subscribe(context.Background())
	sub.Unsubscribe()
	for range sub.Updates() {
	}
}

func TestLiveQueryPredicate(t *testing.T) {
	_, c, _ := newTestCollection(t)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("r%d", i)
		require.NoError(t, c.Insert(Record[testRecord]{ID: id, Value: testRecord{Count: i}}).Wait())
	}

	q := c.Query(func(id string, v testRecord) bool { return v.Count >= 3 })
	require.Equal(t, 2, q.Count())

	require.NoError(t, c.Delete("r4").Wait())
	require.Equal(t, 1, q.Count())

	require.NoError(t, c.Insert(Record[testRecord]{ID: "r9", Value: testRecord{Count: 9}}).Wait())
	results := q.Results()
	require.Len(t, results, 2)
	require.Equal(t, "r9", results[1].ID)
}

func TestReplaceIsOneCommit(t *testing.T) {
	_, c, _ := newTestCollection(t)
	require.NoError(t, c.Insert(
		Record[testRecord]{ID: "old1", Value: testRecord{}},
		Record[testRecord]{ID: "old2", Value: testRecord{}},
	).Wait())

	q := c.Query(nil)
	sub := q.Subscribe(context.Background())
	defer sub.Unsubscribe()

	require.NoError(t, c.Replace([]Record[testRecord]{
		{ID: "new1", Value: testRecord{}},
	}).Wait())

	select {
	case snapshot := <-sub.Updates():
		require.Len(t, snapshot, 1)
		require.Equal(t, "new1", snapshot[0].ID)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
	require.Equal(t, []string{"new1"}, c.Keys())
}

func TestTxOutsideBatchPanics(t *testing.T) {
	s, c, _ := newTestCollection(t)

	var leaked *Tx
	s.Batch(func(tx *Tx) { leaked = tx })

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic from Tx use outside its Batch")
		}
	}()
	c.TxInsert(leaked, Record[testRecord]{ID: "x", Value: testRecord{}})
}
