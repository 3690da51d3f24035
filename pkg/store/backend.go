package store

import "sync"

// Backend is the durable side of a collection. Persist receives the full
// encoded snapshot of the collection after a commit; Load returns the most
// recent snapshot, or nil when none exists yet.
type Backend interface {
	Persist(snapshot []byte) error
	Load() ([]byte, error)
	Close() error
}

// MemoryBackend keeps the snapshot in memory. Used in tests and for
// collections that do not outlive the session.
type MemoryBackend struct {
	mu       sync.Mutex
	snapshot []byte

	// FailWrites makes every Persist fail, for exercising the failure path
	FailWrites error
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Persist(snapshot []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.snapshot = make([]byte, len(snapshot))
	copy(m.snapshot, snapshot)
	return nil
}

func (m *MemoryBackend) Load() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot == nil {
		return nil, nil
	}
	out := make([]byte, len(m.snapshot))
	copy(out, m.snapshot)
	return out, nil
}

func (m *MemoryBackend) Close() error { return nil }

// Snapshot returns the last persisted snapshot, for assertions in tests
func (m *MemoryBackend) Snapshot() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.snapshot))
	copy(out, m.snapshot)
	return out
}
