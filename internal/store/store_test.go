package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/user/workbase/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "workbase.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if _, err := s.CreateNote(context.Background(), &types.Note{Title: "hi", Content: "there"}); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestSessionDefaultsToIdle(t *testing.T) {
	s := newTestStore(t)
	sess, err := s.GetSession(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.State != types.StateIdle {
		t.Errorf("state = %s", sess.State)
	}
	if sess.Fields == nil || len(sess.Fields) != 0 {
		t.Errorf("fields = %v", sess.Fields)
	}
}

func TestSessionUpsertReplacesFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.PutSession(ctx, &types.Session{
		ChatID: "42",
		State:  types.StateAwaitTaskPriority,
		Fields: map[string]string{"title": "Fix login"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	err = s.PutSession(ctx, &types.Session{
		ChatID: "42",
		State:  types.StateAwaitTaskDue,
		Fields: map[string]string{"title": "Fix login", "priority": "high"},
	})
	if err != nil {
		t.Fatalf("put again: %v", err)
	}

	sess, err := s.GetSession(ctx, "42")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.State != types.StateAwaitTaskDue {
		t.Errorf("state = %s", sess.State)
	}
	if sess.Fields["priority"] != "high" {
		t.Errorf("fields = %v", sess.Fields)
	}
	if sess.LastSeen.IsZero() {
		t.Error("last_seen not set")
	}
}

func TestSessionCorruptContextResets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (chat_id, username, state, context, last_seen) VALUES (?, ?, ?, ?, ?)`,
		"42", "alice", string(types.StateAwaitTaskDue), "{not json", time.Now().UTC())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	sess, err := s.GetSession(ctx, "42")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.State != types.StateIdle {
		t.Errorf("state = %s, corrupt context should reset the dialog", sess.State)
	}
}

func TestMutationsCarryAuditEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateTask(ctx, &types.Task{Title: "Audited"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.UpdateTaskStatus(ctx, id, types.StatusDone); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.CreateNote(ctx, &types.Note{Title: "n", Content: "c"}); err != nil {
		t.Fatalf("note: %v", err)
	}

	activity, err := s.RecentActivity(ctx, 10)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if len(activity) != 3 {
		t.Fatalf("activity = %d, want 3", len(activity))
	}
	// Newest first.
	if activity[0].Action != "Note created" {
		t.Errorf("latest = %q", activity[0].Action)
	}
}

func TestUpdateTaskStatusMissingTask(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateTaskStatus(context.Background(), 999, types.StatusDone)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v", err)
	}
}

func TestPatchTaskWhitelistsFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateTask(ctx, &types.Task{Title: "Before"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	err = s.PatchTask(ctx, id, map[string]string{
		"title":       "After",
		"priority":    "urgent",
		"assigned_by": "Mallory", // not patchable
	})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}

	tasks, err := s.ListRecentTasks(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	task := tasks[0]
	if task.Title != "After" || task.Priority != "urgent" {
		t.Errorf("task = %+v", task)
	}
	if task.AssignedBy != "" {
		t.Errorf("assigned_by = %q, should be untouched", task.AssignedBy)
	}
}

func TestListTasksByStatusOrdersByPriority(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, p := range []string{"low", "urgent", "medium", "high"} {
		if _, err := s.CreateTask(ctx, &types.Task{Title: p, Priority: p}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	tasks, err := s.ListTasksByStatus(ctx, types.StatusTodo, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var got []string
	for _, task := range tasks {
		got = append(got, task.Priority)
	}
	want := []string{"urgent", "high", "medium", "low"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestStatsWindows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := s.CreateTask(ctx, &types.Task{Title: "open"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	id, err := s.CreateTask(ctx, &types.Task{Title: "finished"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.UpdateTaskStatus(ctx, id, types.StatusDone); err != nil {
		t.Fatalf("done: %v", err)
	}
	if _, err := s.CreateTask(ctx, &types.Task{Title: "late", DueDate: now.AddDate(0, 0, -3).Format("2006-01-02")}); err != nil {
		t.Fatalf("create: %v", err)
	}

	st, err := s.Stats(ctx, now)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 3 || st.Done != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.CompletedWeek != 1 {
		t.Errorf("completed week = %d", st.CompletedWeek)
	}
	if st.Overdue != 1 {
		t.Errorf("overdue = %d", st.Overdue)
	}
}

func TestOverdueExcludesDoneAndUndated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")

	if _, err := s.CreateTask(ctx, &types.Task{Title: "late", DueDate: yesterday}); err != nil {
		t.Fatalf("create: %v", err)
	}
	id, err := s.CreateTask(ctx, &types.Task{Title: "late but done", DueDate: yesterday})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.UpdateTaskStatus(ctx, id, types.StatusDone); err != nil {
		t.Fatalf("done: %v", err)
	}
	if _, err := s.CreateTask(ctx, &types.Task{Title: "no due date"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	tasks, err := s.OverdueTasks(ctx, time.Now().Format("2006-01-02"))
	if err != nil {
		t.Fatalf("overdue: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "late" {
		t.Errorf("tasks = %+v", tasks)
	}
}

func TestSyncGroupKnowledgeGroupsAndCaps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < syncBatchLimit+10; i++ {
		err := s.ArchiveGroupMessage(ctx, &types.GroupMessage{
			ChatID: "-100", ChatTitle: "Ops", Speaker: "alice",
			Message: fmt.Sprintf("message %d", i),
		})
		if err != nil {
			t.Fatalf("archive: %v", err)
		}
	}
	if err := s.ArchiveGroupMessage(ctx, &types.GroupMessage{
		ChatID: "-200", Speaker: "bob", Message: "untitled chat",
	}); err != nil {
		t.Fatalf("archive: %v", err)
	}

	count, err := s.SyncGroupKnowledge(ctx, time.Now())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if count != syncBatchLimit+11 {
		t.Errorf("count = %d", count)
	}

	entries, err := s.SearchKB(ctx, "Group:", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want one per chat", len(entries))
	}
	// Over-limit messages are still marked synced, but the entry holds only
	// the first batch.
	opsEntry := entries[0]
	if !strings.Contains(opsEntry.Title, "Ops") {
		opsEntry = entries[1]
	}
	if n := strings.Count(opsEntry.Content, "\n") + 1; n != syncBatchLimit {
		t.Errorf("entry lines = %d, want %d", n, syncBatchLimit)
	}

	left, err := s.CountUnsyncedGroupMessages(ctx)
	if err != nil {
		t.Fatalf("count unsynced: %v", err)
	}
	if left != 0 {
		t.Errorf("unsynced = %d", left)
	}

	// Nothing new, nothing synced.
	count, err = s.SyncGroupKnowledge(ctx, time.Now())
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if count != 0 {
		t.Errorf("second count = %d", count)
	}
}

func TestClaimDueRemindersClaimsOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	past := now.Add(-time.Minute)
	if _, err := s.CreateReminder(ctx, &types.Reminder{ChatID: 42, Title: "due", RemindAt: &past}); err != nil {
		t.Fatalf("create: %v", err)
	}
	future := now.Add(time.Hour)
	if _, err := s.CreateReminder(ctx, &types.Reminder{ChatID: 42, Title: "later", RemindAt: &future}); err != nil {
		t.Fatalf("create: %v", err)
	}
	// No chat to deliver to: never claimed.
	if _, err := s.CreateReminder(ctx, &types.Reminder{Title: "orphan", RemindAt: &past}); err != nil {
		t.Fatalf("create: %v", err)
	}

	due, err := s.ClaimDueReminders(ctx, now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(due) != 1 || due[0].Title != "due" {
		t.Fatalf("due = %+v", due)
	}

	again, err := s.ClaimDueReminders(ctx, now)
	if err != nil {
		t.Fatalf("claim again: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("again = %d", len(again))
	}
}

func TestTeamTaskCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	memberID, err := s.AddTeamMember(ctx, &types.TeamMember{Name: "Alice", Role: "Engineer"})
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if _, err := s.CreateTask(ctx, &types.Task{Title: "hers", AssignedTo: memberID}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateTask(ctx, &types.Task{Title: "unassigned"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	members, err := s.ListTeam(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("members = %d", len(members))
	}
	if members[0].TaskCount != 1 {
		t.Errorf("task count = %d", members[0].TaskCount)
	}

	tasks, err := s.ListRecentTasks(ctx, 10)
	if err != nil {
		t.Fatalf("tasks: %v", err)
	}
	for _, task := range tasks {
		if task.Title == "hers" && task.Assignee != "Alice" {
			t.Errorf("assignee = %q", task.Assignee)
		}
		if task.Title == "unassigned" && task.Assignee != "" {
			t.Errorf("assignee = %q", task.Assignee)
		}
	}
}
