package storage

import (
	"bytes"
	"context"
	"errors"
	"sync"
)

// ErrNoSuchBucket is wrapped into ErrStorageUnavailable when writing to a
// bucket that was never created.
var ErrNoSuchBucket = errors.New("no such bucket")

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryBackend keeps objects in process memory. Get returns Resident bodies.
// It is used by tests and by single-process development setups.
type MemoryBackend struct {
	mu      sync.RWMutex
	buckets map[string]map[string]memoryObject
}

// NewMemoryBackend constructs an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{buckets: make(map[string]map[string]memoryObject)}
}

// EnsureBucket creates the bucket if it is missing.
func (m *MemoryBackend) EnsureBucket(_ context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; !ok {
		m.buckets[bucket] = make(map[string]memoryObject)
	}
	return nil
}

// HasBucket reports whether the bucket exists.
func (m *MemoryBackend) HasBucket(bucket string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.buckets[bucket]
	return ok
}

// Put stores a copy of data.
func (m *MemoryBackend) Put(_ context.Context, bucket, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	objects, ok := m.buckets[bucket]
	if !ok {
		return unavailable("put "+bucket+"/"+key, ErrNoSuchBucket)
	}
	objects[key] = memoryObject{data: bytes.Clone(data), contentType: contentType}
	return nil
}

// Get returns the stored object.
func (m *MemoryBackend) Get(_ context.Context, bucket, key string) (*Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.buckets[bucket][key]
	if !ok {
		return nil, notFound(bucket, key)
	}
	return &Object{Body: Resident{Data: obj.data}, ContentType: obj.contentType}, nil
}

// Delete removes the object if present.
func (m *MemoryBackend) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets[bucket], key)
	return nil
}
