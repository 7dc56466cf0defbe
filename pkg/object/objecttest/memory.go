// Package objecttest provides an in-memory object.ObjectStorage for tests.
package objecttest

import (
	"bytes"
	"context"
	"io"
	"maps"
	"sync"
	"time"

	"datasync/pkg/object"
)

// Memory keeps objects in a map.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]object.Object
	// Puts counts successful Put calls.
	Puts int
}

func (m *Memory) Init(context.Context, any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
		m.meta = map[string]object.Object{}
	}
	return nil
}

func (m *Memory) Close(context.Context) error { return nil }

func (m *Memory) Put(ctx context.Context, key string, r io.Reader, contentType string, meta map[string]string) (object.Object, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return object.Object{}, err
	}
	m.Init(ctx, nil)

	m.mu.Lock()
	defer m.mu.Unlock()
	obj := object.Object{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  contentType,
		LastModified: time.Now(),
		CustomMeta:   maps.Clone(meta),
	}
	m.objects[key] = data
	m.meta[key] = obj
	m.Puts++
	return obj, nil
}

func (m *Memory) Get(_ context.Context, key string) (object.Object, io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return object.Object{}, nil, object.ErrNotFound
	}
	return m.meta[key], io.NopCloser(bytes.NewReader(data)), nil
}

func (m *Memory) Stat(_ context.Context, key string) (object.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.meta[key]
	if !ok {
		return object.Object{}, object.ErrNotFound
	}
	return obj, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	delete(m.meta, key)
	return nil
}

// Bytes returns the stored content of key.
func (m *Memory) Bytes(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}
