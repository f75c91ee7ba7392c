package cart

import (
	"context"
	"errors"
	"sync"
)

// ErrSlotEmpty is returned by Slot.Get when nothing is stored under the key.
var ErrSlotEmpty = errors.New("cart: slot empty")

// Slot is the durable key-value storage the cart persists itself into.
// Errors are reported to the store, which logs and drops them.
type Slot interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Notifier receives human-readable cart messages.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// MemorySlot keeps values in process memory. It backs tests and the
// CART_STORAGE=memory mode.
type MemorySlot struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemorySlot() *MemorySlot {
	return &MemorySlot{data: map[string]string{}}
}

func (m *MemorySlot) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrSlotEmpty
	}
	return v, nil
}

func (m *MemorySlot) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemorySlot) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
