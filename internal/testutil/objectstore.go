package testutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// MemoryObjectStore is an in-memory storage.ObjectStore for tests.
type MemoryObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	// FailUploads makes every Upload return an error.
	FailUploads bool
}

func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{objects: make(map[string][]byte)}
}

func (s *MemoryObjectStore) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	if s.FailUploads {
		return errors.New("upload failed")
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: got %d bytes, expected %d", len(data), size)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectName] = data
	return nil
}

func (s *MemoryObjectStore) Delete(ctx context.Context, objectName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectName)
	return nil
}

func (s *MemoryObjectStore) PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("https://storage.test/%s?expires=%d", objectName, int(expiry.Seconds())), nil
}

// Has reports whether an object is stored under objectName.
func (s *MemoryObjectStore) Has(objectName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[objectName]
	return ok
}

func (s *MemoryObjectStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
