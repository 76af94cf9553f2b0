package storage

import (
	"context"
	"errors"
	"sync"

	procurementapp "github.com/corpelima/backend/internal/application/procurement"
)

// Ensure MemoryObjectStorage implements the artifact storage port
var _ procurementapp.ObjectStorage = (*MemoryObjectStorage)(nil)

// MemoryObjectStorage is an in-memory artifact store for tests and local
// development. Failures can be injected per operation to exercise abort
// paths.
type MemoryObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte

	// FailUploads / FailDeletes make the corresponding operation return an
	// error without touching stored state.
	FailUploads bool
	FailDeletes bool
}

// NewMemoryObjectStorage creates an empty MemoryObjectStorage.
func NewMemoryObjectStorage() *MemoryObjectStorage {
	return &MemoryObjectStorage{objects: make(map[string][]byte)}
}

// Upload stores the data under the key.
func (s *MemoryObjectStorage) Upload(ctx context.Context, storageKey string, data []byte, contentType string) error {
	if storageKey == "" {
		return errors.New("storage key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUploads {
		return errors.New("injected upload failure")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[storageKey] = buf
	return nil
}

// DeleteObject removes the key. Deleting a missing key succeeds.
func (s *MemoryObjectStorage) DeleteObject(ctx context.Context, storageKey string) error {
	if storageKey == "" {
		return errors.New("storage key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailDeletes {
		return errors.New("injected delete failure")
	}
	delete(s.objects, storageKey)
	return nil
}

// ObjectExists reports whether the key is stored.
func (s *MemoryObjectStorage) ObjectExists(ctx context.Context, storageKey string) (bool, error) {
	if storageKey == "" {
		return false, errors.New("storage key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[storageKey]
	return ok, nil
}

// Get returns a stored object, for test assertions.
func (s *MemoryObjectStorage) Get(storageKey string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[storageKey]
	return data, ok
}

// Len returns the number of stored objects.
func (s *MemoryObjectStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
