package credential

import (
	"os"
	"sync"
)

// Store is the process-wide key/value configuration the pipeline reads
// credentials from.
type Store interface {
	Lookup(key string) (string, bool)
	Set(key, value string) error
	Unset(key string) error
}

// ProcessEnv is the Store backed by the process environment.
type ProcessEnv struct{}

// Lookup implements Store.
func (ProcessEnv) Lookup(key string) (string, bool) { return os.LookupEnv(key) }

// Set implements Store.
func (ProcessEnv) Set(key, value string) error { return os.Setenv(key, value) }

// Unset implements Store.
func (ProcessEnv) Unset(key string) error { return os.Unsetenv(key) }

// MapStore is an in-memory Store, safe for concurrent use.
type MapStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMapStore returns a MapStore seeded with initial.
func NewMapStore(initial map[string]string) *MapStore {
	values := make(map[string]string, len(initial))
	for k, v := range initial {
		values[k] = v
	}
	return &MapStore{values: values}
}

// Lookup implements Store.
func (m *MapStore) Lookup(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// Set implements Store.
func (m *MapStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Unset implements Store.
func (m *MapStore) Unset(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Snapshot returns a copy of the current contents.
func (m *MapStore) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}
