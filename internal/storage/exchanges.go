package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const exchangeColumns = `id, session_id, created_at, label, user_text, assistant_text, suggestions, outcome, patch_count, error, duration_ms`

// SaveExchange appends e to the journal. An empty Suggestions is stored as "[]".
func (s *Store) SaveExchange(e Exchange) error {
	suggestions := e.Suggestions
	if suggestions == "" {
		suggestions = "[]"
	}
	_, err := s.db.Exec(`
		INSERT INTO exchanges (`+exchangeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.CreatedAt.UTC().Format(timeLayout), e.Label, e.UserText,
		e.AssistantText, suggestions, e.Outcome, e.PatchCount, e.Error, e.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("saving exchange %s: %w", e.ID, err)
	}
	return nil
}

func (s *Store) GetExchange(id string) (Exchange, error) {
	row := s.db.QueryRow(`SELECT `+exchangeColumns+` FROM exchanges WHERE id = ?`, id)
	e, err := scanExchange(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Exchange{}, ErrNotFound
	}
	return e, err
}

// ListExchanges returns exchanges newest first.
func (s *Store) ListExchanges(limit, offset int) ([]Exchange, error) {
	rows, err := s.db.Query(`
		SELECT `+exchangeColumns+`
		FROM exchanges ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing exchanges: %w", err)
	}
	defer rows.Close()

	var results []Exchange
	for rows.Next() {
		e, err := scanExchange(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// DeleteExchanges removes every journal entry and reports how many were deleted.
func (s *Store) DeleteExchanges() (int64, error) {
	res, err := s.db.Exec("DELETE FROM exchanges")
	if err != nil {
		return 0, fmt.Errorf("deleting exchanges: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExchange(r rowScanner) (Exchange, error) {
	var e Exchange
	var createdAt string
	if err := r.Scan(&e.ID, &e.SessionID, &createdAt, &e.Label, &e.UserText, &e.AssistantText,
		&e.Suggestions, &e.Outcome, &e.PatchCount, &e.Error, &e.DurationMs); err != nil {
		return Exchange{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Exchange{}, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}
	e.CreatedAt = t
	return e, nil
}
