package store

import (
	"context"
	"fmt"
)

// Keys under which the task list view remembers its settings.
const (
	keyListFilter = "prefs.list.filter"
	keyListSort   = "prefs.list.sort"
)

// ListPreferences are the task list settings restored on the next start.
type ListPreferences struct {
	Filter string
	Sort   string
}

// LoadListPreferences returns the saved list settings. Unset values are empty.
func (s *SQLiteStore) LoadListPreferences(ctx context.Context) (ListPreferences, error) {
	var prefs ListPreferences
	var err error
	if prefs.Filter, _, err = s.GetItem(ctx, keyListFilter); err != nil {
		return ListPreferences{}, fmt.Errorf("loading list filter: %w", err)
	}
	if prefs.Sort, _, err = s.GetItem(ctx, keyListSort); err != nil {
		return ListPreferences{}, fmt.Errorf("loading list sort: %w", err)
	}
	return prefs, nil
}

// SaveListPreferences persists the list settings in one transaction.
func (s *SQLiteStore) SaveListPreferences(ctx context.Context, prefs ListPreferences) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO client_state (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing preference statement: %w", err)
	}
	defer stmt.Close()

	for key, value := range map[string]string{keyListFilter: prefs.Filter, keyListSort: prefs.Sort} {
		if _, err := stmt.ExecContext(ctx, key, value); err != nil {
			return fmt.Errorf("saving preference %q: %w", key, err)
		}
	}

	return tx.Commit()
}
