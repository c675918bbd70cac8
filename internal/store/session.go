package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/user/workbase/internal/types"
)

// GetSession returns the conversation session for a chat. A chat that has
// never been seen gets an idle session with empty fields; this never fails
// with a not-found error.
func (s *Store) GetSession(ctx context.Context, chatID string) (*types.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT chat_id, username, state, context, last_seen FROM sessions WHERE chat_id = ?`,
		chatID)

	var sess types.Session
	var rawContext string
	err := row.Scan(&sess.ChatID, &sess.Username, &sess.State, &rawContext, &sess.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return &types.Session{
			ChatID: chatID,
			State:  types.StateIdle,
			Fields: map[string]string{},
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	if err := json.Unmarshal([]byte(rawContext), &sess.Fields); err != nil || sess.Fields == nil {
		// A corrupt context map resets the dialog rather than wedging the chat.
		sess.State = types.StateIdle
		sess.Fields = map[string]string{}
	}
	return &sess, nil
}

// PutSession upserts the full session record, replacing any prior state and
// fields for the chat. Last write wins; a chat is one human driving one
// dialog at a time.
func (s *Store) PutSession(ctx context.Context, sess *types.Session) error {
	fields := sess.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	rawContext, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal session context: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (chat_id, username, state, context, last_seen)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET
			username = excluded.username,
			state = excluded.state,
			context = excluded.context,
			last_seen = excluded.last_seen`,
		sess.ChatID, sess.Username, string(sess.State), string(rawContext), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}
