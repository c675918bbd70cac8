package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/user/workbase/internal/types"
)

// CreateNote inserts a note and its audit entry in one transaction.
func (s *Store) CreateNote(ctx context.Context, n *types.Note) (int64, error) {
	now := time.Now().UTC()

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`INSERT INTO notes (title, content, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			n.Title, n.Content, now, now)
		if err != nil {
			return fmt.Errorf("insert note: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("note id: %w", err)
		}
		return logAction(tx, "Note created", n.Title)
	})
	if err != nil {
		return 0, err
	}
	n.ID = id
	n.CreatedAt = now
	n.UpdatedAt = now
	return id, nil
}

// CountNotes returns the number of stored notes.
func (s *Store) CountNotes(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count notes: %w", err)
	}
	return n, nil
}
