package credstore

import (
	"context"
	"sync"
)

// watchBuffer is the per-watcher channel buffer. Watchers that fall this far
// behind lose changes, matching the best-effort nature of storage events.
const watchBuffer = 16

// Memory is an in-memory Store. It is primarily useful in tests and for
// wiring several managers inside one process to a shared store.
//
// Changes are only emitted when a value actually changes, so rewriting an
// identical value does not wake watchers.
type Memory struct {
	mu       sync.RWMutex
	values   map[string]string
	watchers map[chan Change]struct{}
	closed   bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		values:   make(map[string]string),
		watchers: make(map[chan Change]struct{}),
	}
}

// Get returns the value for key, or ErrNotFound.
func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return "", ErrStoreClosed
	}
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set writes the value for key and notifies watchers if the value changed.
func (m *Memory) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if old, ok := m.values[key]; ok && old == value {
		return nil
	}
	m.values[key] = value
	m.notifyLocked(Change{Key: key, Value: value, Present: true})
	return nil
}

// Delete removes the given keys, notifying watchers for keys that existed.
func (m *Memory) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	for _, key := range keys {
		if _, ok := m.values[key]; !ok {
			continue
		}
		delete(m.values, key)
		m.notifyLocked(Change{Key: key, Present: false})
	}
	return nil
}

// Watch emits changes until ctx is cancelled.
func (m *Memory) Watch(ctx context.Context) (<-chan Change, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrStoreClosed
	}
	ch := make(chan Change, watchBuffer)
	m.watchers[ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		if _, ok := m.watchers[ch]; ok {
			delete(m.watchers, ch)
			close(ch)
		}
		m.mu.Unlock()
	}()

	return ch, nil
}

// Close releases all watcher channels and rejects further operations.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	m.closed = true
	for ch := range m.watchers {
		delete(m.watchers, ch)
		close(ch)
	}
	return nil
}

func (m *Memory) notifyLocked(change Change) {
	for ch := range m.watchers {
		select {
		case ch <- change:
		default: // watcher buffer full, drop
		}
	}
}
