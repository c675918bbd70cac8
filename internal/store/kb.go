package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/user/workbase/internal/types"
)

// CreateKBEntry inserts a knowledge-base entry and its audit entry in one
// transaction. An empty category defaults to General.
func (s *Store) CreateKBEntry(ctx context.Context, e *types.KBEntry) (int64, error) {
	if e.Category == "" {
		e.Category = types.DefaultKBCategory
	}
	now := time.Now().UTC()

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`INSERT INTO kb_entries (title, content, category, created_at) VALUES (?, ?, ?, ?)`,
			e.Title, e.Content, e.Category, now)
		if err != nil {
			return fmt.Errorf("insert kb entry: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("kb entry id: %w", err)
		}
		return logAction(tx, "KB entry created", e.Title)
	})
	if err != nil {
		return 0, err
	}
	e.ID = id
	e.CreatedAt = now
	return id, nil
}

// SearchKB returns entries whose title, content, or category contains the
// query substring.
func (s *Store) SearchKB(ctx context.Context, query string, limit int) ([]*types.KBEntry, error) {
	like := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, category, created_at FROM kb_entries
		 WHERE title LIKE ? OR content LIKE ? OR category LIKE ?
		 ORDER BY id LIMIT ?`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("search kb: %w", err)
	}
	defer rows.Close()

	var entries []*types.KBEntry
	for rows.Next() {
		var e types.KBEntry
		if err := rows.Scan(&e.ID, &e.Title, &e.Content, &e.Category, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan kb entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// ImportKBEntries inserts a batch of entries plus one audit entry describing
// the import, all in a single transaction. Returns the number inserted.
func (s *Store) ImportKBEntries(ctx context.Context, entries []*types.KBEntry, auditDetail string) (int, error) {
	now := time.Now().UTC()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range entries {
			if e.Category == "" {
				e.Category = types.DefaultKBCategory
			}
			if _, err := tx.Exec(
				`INSERT INTO kb_entries (title, content, category, created_at) VALUES (?, ?, ?, ?)`,
				e.Title, e.Content, e.Category, now); err != nil {
				return fmt.Errorf("insert imported entry: %w", err)
			}
		}
		return logAction(tx, "Chat export import", auditDetail)
	})
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}
