package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"
)

// Object is a stored artifact held in memory.
type Object struct {
	Data        []byte
	ContentType string
}

// InMemoryStore keeps artifacts in process memory for tests and local runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]Object
}

func NewInMemoryStore(bucket string) *InMemoryStore {
	return &InMemoryStore{bucket: bucket, objects: make(map[string]Object)}
}

func (s *InMemoryStore) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if size >= 0 && n != size {
		return fmt.Errorf("%w: read %d bytes, expected %d", ErrUploadFailed, n, size)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = Object{Data: buf.Bytes(), ContentType: contentType}
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *InMemoryStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	s.mu.RLock()
	_, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	u := url.URL{
		Scheme:   "memory",
		Host:     s.bucket,
		Path:     "/" + key,
		RawQuery: url.Values{"expires": {ttl.String()}}.Encode(),
	}
	return u.String(), nil
}

// Get returns a stored object.
func (s *InMemoryStore) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj, ok
}

// Len returns how many objects are stored.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
