package storage

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
)

// Memory keeps objects in memory. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

// Put stores data under name.
func (m *Memory) Put(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path.Clean(name)] = append([]byte(nil), data...)
}

// Get returns the content of name.
func (m *Memory) Get(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[path.Clean(name)]
	return data, ok
}

// Open implements Backend.
func (m *Memory) Open(_ context.Context, name string) (io.ReadCloser, error) {
	data, ok := m.Get(name)
	if !ok {
		return nil, notFound(name, nil)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Create implements Backend.
func (m *Memory) Create(_ context.Context, name string) (io.WriteCloser, error) {
	return &memoryWriter{store: m, name: name}, nil
}

// List implements Backend.
func (m *Memory) List(_ context.Context, dir string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p := path.Clean(dir) + "/"
	if p == "./" {
		p = ""
	}

	var names []string
	for name := range m.objects {
		if rest := strings.TrimPrefix(name, p); strings.HasPrefix(name, p) && !strings.Contains(rest, "/") {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, notFound(dir, nil)
	}
	sort.Strings(names)
	return names, nil
}

type memoryWriter struct {
	bytes.Buffer
	store  *Memory
	name   string
	closed bool
}

func (w *memoryWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.store.Put(w.name, w.Bytes())
	return nil
}

// Discard drops the buffered content without storing it.
func (w *memoryWriter) Discard(error) error {
	w.closed = true
	w.Reset()
	return nil
}
