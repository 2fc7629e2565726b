package storage

import "sync"

// MemorySlots is a process-local slot store. It backs `--ephemeral` chat
// and serve sessions, where the profile must not outlive the process.
type MemorySlots struct {
	mu    sync.Mutex
	slots map[string][]byte
}

func NewMemorySlots() *MemorySlots {
	return &MemorySlots{slots: make(map[string][]byte)}
}

func (m *MemorySlots) GetSlot(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.slots[name]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemorySlots) SetSlot(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[name] = append([]byte{}, data...)
	return nil
}

func (m *MemorySlots) ClearSlot(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, name)
	return nil
}
