package blob

import (
	"context"
	"sync"
)

// MemoryStore keeps blobs in process memory. Used when no object storage is
// configured and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]MemoryObject
	// FailOn makes Store fail for matching pathnames.
	FailOn func(pathname string) error
}

// MemoryObject is one stored blob.
type MemoryObject struct {
	Data      []byte
	MediaType string
}

// NewMemoryStore creates a store serving URLs under baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://blobs"
	}
	return &MemoryStore{baseURL: baseURL, objects: make(map[string]MemoryObject)}
}

// Store copies data under pathname.
func (m *MemoryStore) Store(_ context.Context, pathname string, data []byte, mediaType string) (Object, error) {
	if m.FailOn != nil {
		if err := m.FailOn(pathname); err != nil {
			return Object{}, err
		}
	}
	buf := append([]byte(nil), data...)
	m.mu.Lock()
	m.objects[pathname] = MemoryObject{Data: buf, MediaType: mediaType}
	m.mu.Unlock()
	return Object{URL: m.baseURL + "/" + pathname, Pathname: pathname}, nil
}

// Get returns a stored blob.
func (m *MemoryStore) Get(pathname string) (MemoryObject, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[pathname]
	return obj, ok
}

// Len reports how many blobs are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
