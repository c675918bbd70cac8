package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/user/workbase/internal/types"
)

// syncBatchLimit caps how many messages land in a single KB entry per chat.
const syncBatchLimit = 50

// ArchiveGroupMessage stores a group-chat message for later promotion into
// the knowledge base. Archiving is a passive side effect of group traffic,
// so it carries no audit entry.
func (s *Store) ArchiveGroupMessage(ctx context.Context, m *types.GroupMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO group_knowledge (chat_id, chat_title, speaker, message, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		m.ChatID, m.ChatTitle, m.Speaker, m.Message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("archive group message: %w", err)
	}
	return nil
}

// CountUnsyncedGroupMessages returns how many archived messages have not yet
// been promoted to the knowledge base.
func (s *Store) CountUnsyncedGroupMessages(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM group_knowledge WHERE synced_to_kb = 0`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unsynced: %w", err)
	}
	return n, nil
}

// SyncGroupKnowledge promotes unsynced group messages into knowledge-base
// entries, one entry per chat (capped at syncBatchLimit messages), all under
// the "Team Conversations" category. Selection, insertion, marking, and the
// audit entry share one transaction, so a message arriving mid-sync is left
// for the next run and a repeat run with no new messages syncs zero.
// Returns the number of messages synced.
func (s *Store) SyncGroupKnowledge(ctx context.Context, now time.Time) (int, error) {
	type archived struct {
		id      int64
		chat    string
		speaker string
		message string
	}

	var count int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.Query(
			`SELECT id, COALESCE(NULLIF(chat_title, ''), chat_id), speaker, message
			 FROM group_knowledge WHERE synced_to_kb = 0 ORDER BY id`)
		if err != nil {
			return fmt.Errorf("query unsynced: %w", err)
		}
		byChat := make(map[string][]archived)
		var order []string
		for rows.Next() {
			var a archived
			if err := rows.Scan(&a.id, &a.chat, &a.speaker, &a.message); err != nil {
				rows.Close()
				return fmt.Errorf("scan group message: %w", err)
			}
			if _, seen := byChat[a.chat]; !seen {
				order = append(order, a.chat)
			}
			byChat[a.chat] = append(byChat[a.chat], a)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if len(byChat) == 0 {
			return nil
		}

		day := now.Format("2006-01-02")
		for _, chat := range order {
			msgs := byChat[chat]
			batch := msgs
			if len(batch) > syncBatchLimit {
				batch = batch[:syncBatchLimit]
			}
			var content string
			for i, m := range batch {
				if i > 0 {
					content += "\n"
				}
				content += fmt.Sprintf("[%s]: %s", m.speaker, m.message)
			}
			title := fmt.Sprintf("Group: %s — %s", chat, day)
			if _, err := tx.Exec(
				`INSERT INTO kb_entries (title, content, category, created_at) VALUES (?, ?, ?, ?)`,
				title, content, "Team Conversations", now.UTC()); err != nil {
				return fmt.Errorf("insert synced entry: %w", err)
			}
			for _, m := range msgs {
				if _, err := tx.Exec(
					`UPDATE group_knowledge SET synced_to_kb = 1 WHERE id = ?`, m.id); err != nil {
					return fmt.Errorf("mark synced: %w", err)
				}
			}
			count += len(msgs)
		}
		return logAction(tx, "Group KB sync", fmt.Sprintf("Synced %d messages", count))
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
