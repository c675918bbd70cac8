package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/user/workbase/internal/types"
)

// ListTeam returns all team members with their assigned-task counts.
func (s *Store) ListTeam(ctx context.Context) ([]*types.TeamMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.name, m.role, m.avatar_url, m.email,
			(SELECT COUNT(*) FROM tasks t WHERE t.assigned_to = m.id)
		 FROM team_members m ORDER BY m.id`)
	if err != nil {
		return nil, fmt.Errorf("query team: %w", err)
	}
	defer rows.Close()

	var members []*types.TeamMember
	for rows.Next() {
		var m types.TeamMember
		if err := rows.Scan(&m.ID, &m.Name, &m.Role, &m.AvatarURL, &m.Email, &m.TaskCount); err != nil {
			return nil, fmt.Errorf("scan team member: %w", err)
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

// AddTeamMember inserts a member and its audit entry in one transaction.
func (s *Store) AddTeamMember(ctx context.Context, m *types.TeamMember) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`INSERT INTO team_members (name, role, avatar_url, email) VALUES (?, ?, ?, ?)`,
			m.Name, m.Role, m.AvatarURL, m.Email)
		if err != nil {
			return fmt.Errorf("insert team member: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("team member id: %w", err)
		}
		return logAction(tx, "Team member added", m.Name)
	})
	if err != nil {
		return 0, err
	}
	m.ID = id
	return id, nil
}
