package jobs

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process. The least recently written record is evicted once
// MaxSize is reached, and records older than TTL are treated as missing.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*memoryEntry
	lru     *list.List
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	rec     Record
	expiry  time.Time
	element *list.Element
}

// NewMemoryStore returns a store holding at most maxSize records; 0 means unbounded. A zero ttl
// keeps records forever.
func NewMemoryStore(maxSize int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*memoryEntry),
		lru:     list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put stores a copy of rec.
func (m *MemoryStore) Put(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiry := time.Time{}
	if m.ttl > 0 {
		expiry = m.now().Add(m.ttl)
	}
	if e, ok := m.records[rec.ID]; ok {
		e.rec = *rec
		e.expiry = expiry
		m.lru.MoveToFront(e.element)
		return nil
	}

	if m.maxSize > 0 && m.lru.Len() >= m.maxSize {
		if oldest := m.lru.Back(); oldest != nil {
			delete(m.records, oldest.Value.(string))
			m.lru.Remove(oldest)
		}
	}
	e := &memoryEntry{rec: *rec, expiry: expiry}
	e.element = m.lru.PushFront(rec.ID)
	m.records[rec.ID] = e
	return nil
}

// Get returns a copy of the record with the given id.
func (m *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !e.expiry.IsZero() && m.now().After(e.expiry) {
		delete(m.records, id)
		m.lru.Remove(e.element)
		return nil, ErrNotFound
	}
	rec := e.rec
	return &rec, nil
}

// Len returns the number of stored records, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
