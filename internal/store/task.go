package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/user/workbase/internal/types"
)

// CreateTask inserts a task and its audit entry in one transaction,
// returning the new ID. Empty status/priority default to todo/medium.
func (s *Store) CreateTask(ctx context.Context, t *types.Task) (int64, error) {
	if t.Status == "" {
		t.Status = types.StatusTodo
	}
	if t.Priority == "" {
		t.Priority = types.PriorityMedium
	}
	now := time.Now().UTC()

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`INSERT INTO tasks (title, description, status, priority, assigned_to, assigned_by, due_date, tags, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.Title, t.Description, t.Status, t.Priority, nullableID(t.AssignedTo),
			t.AssignedBy, t.DueDate, t.Tags, now, now)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("task id: %w", err)
		}
		return logAction(tx, "Task created", t.Title)
	})
	if err != nil {
		return 0, err
	}
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now
	return id, nil
}

// UpdateTaskStatus sets the task's status. Applying the same status again is
// a no-op in effect, so webhook retries are harmless.
func (s *Store) UpdateTaskStatus(ctx context.Context, id int64, status string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
			status, time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("update task status: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update task status: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("task %d: %w", id, ErrNotFound)
		}
		return logAction(tx, "Status updated", fmt.Sprintf("Task #%d → %s", id, status))
	})
}

// patchableTaskFields whitelists the columns the service API may change.
var patchableTaskFields = []string{"title", "description", "status", "priority", "due_date", "tags"}

// PatchTask updates the given subset of task fields. Unknown fields are
// ignored; an empty patch is a no-op.
func (s *Store) PatchTask(ctx context.Context, id int64, fields map[string]string) error {
	var set []string
	var args []any
	for _, f := range patchableTaskFields {
		if v, ok := fields[f]; ok {
			set = append(set, f+" = ?")
			args = append(args, v)
		}
	}
	if len(set) == 0 {
		return nil
	}
	set = append(set, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`UPDATE tasks SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return fmt.Errorf("patch task: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("patch task: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("task %d: %w", id, ErrNotFound)
		}
		return logAction(tx, "Task updated", fmt.Sprintf("#%d", id))
	})
}

const taskColumns = `t.id, t.title, t.description, t.status, t.priority,
	COALESCE(t.assigned_to, 0), t.assigned_by, t.due_date, t.tags,
	t.created_at, t.updated_at, COALESCE(tm.name, '')`

func scanTasks(rows *sql.Rows) ([]*types.Task, error) {
	var tasks []*types.Task
	for rows.Next() {
		var t types.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority,
			&t.AssignedTo, &t.AssignedBy, &t.DueDate, &t.Tags,
			&t.CreatedAt, &t.UpdatedAt, &t.Assignee); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

// ListRecentTasks returns the newest tasks with assignee names joined in.
func (s *Store) ListRecentTasks(ctx context.Context, limit int) ([]*types.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks t
		 LEFT JOIN team_members tm ON t.assigned_to = tm.id
		 ORDER BY t.created_at DESC, t.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListTasksByStatus returns tasks in the given status, highest priority first.
func (s *Store) ListTasksByStatus(ctx context.Context, status string, limit int) ([]*types.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks t
		 LEFT JOIN team_members tm ON t.assigned_to = tm.id
		 WHERE t.status = ?
		 ORDER BY CASE t.priority
			WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3
		 END, t.id LIMIT ?`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("query tasks by status: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// OverdueTasks returns unfinished tasks whose due date is before today,
// oldest due date first. today is a YYYY-MM-DD string.
func (s *Store) OverdueTasks(ctx context.Context, today string) ([]*types.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks t
		 LEFT JOIN team_members tm ON t.assigned_to = tm.id
		 WHERE t.due_date != '' AND t.due_date < ? AND t.status != 'done'
		 ORDER BY t.due_date`, today)
	if err != nil {
		return nil, fmt.Errorf("query overdue tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// TaskCounts returns the number of tasks per status.
func (s *Store) TaskCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("query task counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan task count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// Stats assembles the aggregate dashboard snapshot. now anchors the "this
// week" and overdue windows.
func (s *Store) Stats(ctx context.Context, now time.Time) (*types.Stats, error) {
	counts, err := s.TaskCounts(ctx)
	if err != nil {
		return nil, err
	}
	st := &types.Stats{
		Todo:       counts[types.StatusTodo],
		InProgress: counts[types.StatusInProgress],
		Done:       counts[types.StatusDone],
	}
	for _, n := range counts {
		st.Total += n
	}

	today := now.Format("2006-01-02")
	weekAgo := now.AddDate(0, 0, -7).UTC()
	row := s.db.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM tasks WHERE status = 'done' AND updated_at >= ?),
			(SELECT COUNT(*) FROM tasks WHERE due_date != '' AND due_date < ? AND status != 'done'),
			(SELECT COUNT(*) FROM notes),
			(SELECT COUNT(*) FROM kb_entries)`,
		weekAgo, today)
	if err := row.Scan(&st.CompletedWeek, &st.Overdue, &st.Notes, &st.KBEntries); err != nil {
		return nil, fmt.Errorf("scan stats: %w", err)
	}
	return st, nil
}

// nullableID maps 0 to NULL so the assignee join stays empty for
// unassigned tasks.
func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
