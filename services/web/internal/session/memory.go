package session

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	values  map[string][]byte
	touched time.Time
}

// MemoryStore is a process-local Store for tests and single-node development.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*memEntry
	locks    map[string]time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*memEntry),
		locks:    make(map[string]time.Time),
	}
}

// live returns the entry for sid, dropping it if it has idled past the TTL.
// Caller holds mu.
func (m *MemoryStore) live(sid string) *memEntry {
	e, ok := m.sessions[sid]
	if !ok {
		return nil
	}
	if m.ttl > 0 && m.now().Sub(e.touched) > m.ttl {
		delete(m.sessions, sid)
		return nil
	}
	e.touched = m.now()
	return e
}

func (m *MemoryStore) Get(_ context.Context, sid, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(sid)
	if e == nil {
		return nil, ErrNotFound
	}
	v, ok := e.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Set(_ context.Context, sid, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(sid)
	if e == nil {
		e = &memEntry{values: make(map[string][]byte), touched: m.now()}
		m.sessions[sid] = e
	}
	e.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sid, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e := m.live(sid); e != nil {
		delete(e.values, key)
	}
	return nil
}

func (m *MemoryStore) Acquire(_ context.Context, sid, key string, ttl time.Duration) (func(), bool, error) {
	name := sid + ":" + key
	m.mu.Lock()
	defer m.mu.Unlock()
	if until, held := m.locks[name]; held && m.now().Before(until) {
		return func() {}, false, nil
	}
	until := m.now().Add(ttl)
	m.locks[name] = until
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.locks[name].Equal(until) {
				delete(m.locks, name)
			}
		})
	}, true, nil
}
