package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/20223096/mbti-app/internal/storage"
	"github.com/20223096/mbti-app/internal/traits"
)

// SlotName is the persistence slot holding the active traits profile.
const SlotName = "traits_profile"

// ErrEmptyLabel is returned by Ensure when no classification label is set.
var ErrEmptyLabel = errors.New("profile: empty classification label")

// SlotStore is a named byte slot. GetSlot returns storage.ErrNotFound when
// the slot is empty. Implemented by storage.Store and storage.MemorySlots.
type SlotStore interface {
	GetSlot(name string) ([]byte, error)
	SetSlot(name string, data []byte) error
	ClearSlot(name string) error
}

// Manager owns the one active traits profile. The slot is the source of
// truth; the in-memory copy is only consulted when the slot holds nothing
// readable.
type Manager struct {
	store SlotStore

	mu     sync.RWMutex
	cached *traits.Profile
}

// NewManager creates a Manager backed by store.
func NewManager(store SlotStore) *Manager {
	return &Manager{store: store}
}

// Ensure returns the persisted profile when its kind matches label.
// Otherwise it discards whatever was stored, persists a fresh profile for
// label, and returns that.
func (m *Manager) Ensure(label string) (traits.Profile, error) {
	if label == "" {
		return traits.Profile{}, ErrEmptyLabel
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.load(); ok {
		if p.Kind == label {
			m.cached = &p
			return p.Clone(), nil
		}
		slog.Info("discarding stale traits profile", "stored", p.Kind, "active", label)
	}

	fresh := traits.NewProfile(label)
	m.cached = &fresh
	if err := m.persist(fresh); err != nil {
		return traits.Profile{}, err
	}
	return fresh.Clone(), nil
}

// CurrentSnapshot returns the persisted profile if one is readable, else the
// last profile this Manager saw, else nil.
func (m *Manager) CurrentSnapshot() *traits.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.load(); ok {
		m.cached = &p
		cp := p.Clone()
		return &cp
	}
	if m.cached == nil {
		return nil
	}
	cp := m.cached.Clone()
	return &cp
}

// Commit makes p the new source of truth. The in-memory copy is updated even
// when persisting fails.
func (m *Manager) Commit(p traits.Profile) error {
	cp := p.Clone()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cached = &cp
	return m.persist(cp)
}

// Reset clears both the persisted slot and the in-memory copy.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cached = nil
	if err := m.store.ClearSlot(SlotName); err != nil {
		return fmt.Errorf("clearing profile slot: %w", err)
	}
	return nil
}

// load reads and parses the slot. Anything other than a well-formed profile
// counts as absent. Caller must hold mu.
func (m *Manager) load() (traits.Profile, bool) {
	data, err := m.store.GetSlot(SlotName)
	if errors.Is(err, storage.ErrNotFound) {
		return traits.Profile{}, false
	}
	if err != nil {
		slog.Warn("reading profile slot failed, treating as empty", "error", err)
		return traits.Profile{}, false
	}
	if len(data) == 0 {
		return traits.Profile{}, false
	}
	p, err := traits.ParseProfile(data)
	if err != nil {
		slog.Warn("malformed persisted profile, treating as empty", "error", err)
		return traits.Profile{}, false
	}
	return p, true
}

func (m *Manager) persist(p traits.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding profile %q: %w", p.Kind, err)
	}
	if err := m.store.SetSlot(SlotName, data); err != nil {
		return fmt.Errorf("writing profile slot: %w", err)
	}
	return nil
}
