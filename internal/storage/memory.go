package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
)

type memoryObject struct {
	contentType string
	data        []byte
}

// MemoryBucket keeps objects in process memory.
type MemoryBucket struct {
	name    string
	baseURL string

	mu      sync.RWMutex
	objects map[string]memoryObject
}

// NewMemoryBucket creates an empty in-memory bucket.
func NewMemoryBucket(name, baseURL string) *MemoryBucket {
	if baseURL == "" {
		baseURL = "memory://" + name
	}
	return &MemoryBucket{name: name, baseURL: baseURL, objects: make(map[string]memoryObject)}
}

func (b *MemoryBucket) Put(_ context.Context, name, contentType string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[name] = memoryObject{contentType: contentType, data: append([]byte(nil), data...)}
	return nil
}

func (b *MemoryBucket) Delete(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, name)
	return nil
}

func (b *MemoryBucket) Open(_ context.Context, name string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[name]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (b *MemoryBucket) PublicURL(name string) string { return joinURL(b.baseURL, name) }

func (b *MemoryBucket) Name() string { return b.name }

// ContentType returns the stored content type of name.
func (b *MemoryBucket) ContentType(name string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[name]
	return obj.contentType, ok
}

// Len reports the number of stored objects.
func (b *MemoryBucket) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
