package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/user/workbase/internal/types"
)

// CreateReminder inserts a reminder and its audit entry in one transaction.
func (s *Store) CreateReminder(ctx context.Context, r *types.Reminder) (int64, error) {
	if r.RepeatType == "" {
		r.RepeatType = "none"
	}
	// Stored times are always UTC so schedule comparisons stay consistent.
	if r.RemindAt != nil {
		utc := r.RemindAt.UTC()
		r.RemindAt = &utc
	}
	now := time.Now().UTC()

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`INSERT INTO reminders (chat_id, title, description, remind_at, repeat_type, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			r.ChatID, r.Title, r.Description, r.RemindAt, r.RepeatType, now)
		if err != nil {
			return fmt.Errorf("insert reminder: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reminder id: %w", err)
		}
		return logAction(tx, "Reminder created", r.Title)
	})
	if err != nil {
		return 0, err
	}
	r.ID = id
	r.CreatedAt = now
	return id, nil
}

// ClaimDueReminders marks every due, unnotified reminder with a known chat as
// notified and returns them for delivery. Selection and marking share one
// transaction, so a reminder is claimed exactly once even if sweeps overlap.
func (s *Store) ClaimDueReminders(ctx context.Context, now time.Time) ([]*types.Reminder, error) {
	var due []*types.Reminder
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.Query(
			`SELECT id, chat_id, title, description, remind_at, repeat_type, created_at
			 FROM reminders
			 WHERE notified = 0 AND chat_id != 0 AND remind_at IS NOT NULL AND remind_at <= ?
			 ORDER BY remind_at`, now.UTC())
		if err != nil {
			return fmt.Errorf("query due reminders: %w", err)
		}
		for rows.Next() {
			var r types.Reminder
			if err := rows.Scan(&r.ID, &r.ChatID, &r.Title, &r.Description,
				&r.RemindAt, &r.RepeatType, &r.CreatedAt); err != nil {
				rows.Close()
				return fmt.Errorf("scan reminder: %w", err)
			}
			r.Notified = true
			due = append(due, &r)
		}
		// Close before issuing updates; a Tx allows one active statement.
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()
		if len(due) == 0 {
			return nil
		}

		for _, r := range due {
			if _, err := tx.Exec(`UPDATE reminders SET notified = 1 WHERE id = ?`, r.ID); err != nil {
				return fmt.Errorf("mark reminder notified: %w", err)
			}
		}
		return logAction(tx, "Reminders fired", fmt.Sprintf("%d due", len(due)))
	})
	if err != nil {
		return nil, err
	}
	return due, nil
}
