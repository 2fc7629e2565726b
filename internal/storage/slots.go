package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetSlot returns the bytes stored under name, or ErrNotFound.
func (s *Store) GetSlot(name string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow("SELECT value FROM slots WHERE name = ?", name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading slot %s: %w", name, err)
	}
	return value, nil
}

// SetSlot replaces the bytes stored under name.
func (s *Store) SetSlot(name string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.Exec(`
		INSERT INTO slots (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, data, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("writing slot %s: %w", name, err)
	}
	return nil
}

// ClearSlot removes name. Clearing an empty slot is not an error.
func (s *Store) ClearSlot(name string) error {
	if _, err := s.db.Exec("DELETE FROM slots WHERE name = ?", name); err != nil {
		return fmt.Errorf("clearing slot %s: %w", name, err)
	}
	return nil
}
