package storage

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"sync"
	"time"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// memoryStorage keeps objects in process. Used when no S3 bucket is configured
// and by tests.
type memoryStorage struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

func NewMemoryStorage() FileStorage {
	return &memoryStorage{objects: make(map[string]memoryObject)}
}

func (m *memoryStorage) PutObject(_ context.Context, objectKey string, body io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[objectKey] = memoryObject{data: data, contentType: contentType}
	m.mu.Unlock()
	return nil
}

func (m *memoryStorage) OpenObject(_ context.Context, objectKey string) (io.ReadCloser, error) {
	m.mu.RLock()
	obj, ok := m.objects[objectKey]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// GeneratePresignedDownloadURL returns a memory:// URL; there is no server behind it.
func (m *memoryStorage) GeneratePresignedDownloadURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[objectKey]
	m.mu.RUnlock()
	if !ok {
		return "", ErrObjectNotFound
	}
	return "memory://" + url.PathEscape(objectKey), nil
}

func (m *memoryStorage) DeleteObject(_ context.Context, objectKey string) error {
	m.mu.Lock()
	delete(m.objects, objectKey)
	m.mu.Unlock()
	return nil
}
