package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/user/workbase/internal/types"
)

const helpText = `🗂 *WorkBase Bot*

*Tasks*
/tasks — summary of all tasks
/todo — to-do items
/inprogress — in progress
/done — completed tasks
/newtask — create a new task
/overdue — overdue tasks

*Notes & KB*
/note — quick note
/addkb — add KB entry
/kb [query] — search KB

*Info*
/stats — dashboard stats
/team — team members
/syncgroups — push group chat knowledge to KB
/remind — set a reminder

*Natural language also works:*
` + "`add task Fix login bug`\n`note: client called about invoice`\n`remind me send report at 5pm`"

// mainKeyboard is the persistent reply keyboard offered with the help and
// fallback responses. Its buttons re-submit their labels as plain text,
// which the verbose-synonym table then resolves.
func mainKeyboard() [][]types.Button {
	return [][]types.Button{
		{{Text: "📋 Tasks"}, {Text: "📊 Stats"}},
		{{Text: "📝 New Note"}, {Text: "📚 Search KB"}},
		{{Text: "👥 Team"}, {Text: "⏰ Overdue"}},
	}
}

// quickCreateMin is the smallest inline payload that short-circuits a
// dialog straight to execution.
const quickCreateMin = 3

// dispatchCommand routes a resolved command name. Unrecognized names return
// false so the router can fall through to the trigger table.
func (r *Router) dispatchCommand(ctx context.Context, ev *types.InboundEvent, cmd, rest string) (bool, error) {
	switch cmd {
	case "start", "help":
		r.sendHelp(ctx, ev.ChatID)
	case "tasks":
		return true, r.sendTaskSummary(ctx, ev.ChatID)
	case "todo":
		return true, r.sendTasksByStatus(ctx, ev.ChatID, types.StatusTodo)
	case "inprogress":
		return true, r.sendTasksByStatus(ctx, ev.ChatID, types.StatusInProgress)
	case "done":
		return true, r.sendTasksByStatus(ctx, ev.ChatID, types.StatusDone)
	case "newtask":
		return true, r.startTask(ctx, ev, rest)
	case "note":
		return true, r.startNote(ctx, ev, rest)
	case "kb":
		if rest == "" {
			r.reply(ctx, ev.ChatID, "🔍 *Search KB*\n\nSend: `/kb <query>`")
			return true, nil
		}
		return true, r.exec.Execute(ctx, &types.PendingAction{
			Kind:   types.ActionSearchKB,
			ChatID: ev.ChatID,
			Sender: ev.Sender,
			Fields: map[string]string{"query": rest},
		})
	case "addkb":
		r.reply(ctx, ev.ChatID, "📚 *Add to Knowledge Base*\n\nSend in format:\n`Title | Content | Category`")
		return true, r.putSession(ctx, ev, types.StateAwaitKBEntry, nil)
	case "stats":
		return true, r.sendStats(ctx, ev.ChatID)
	case "team":
		return true, r.sendTeam(ctx, ev.ChatID)
	case "overdue":
		return true, r.sendOverdue(ctx, ev.ChatID)
	case "remind":
		return true, r.startReminder(ctx, ev, rest)
	case "syncgroups":
		return true, r.syncGroups(ctx, ev.ChatID)
	case "setwebhook":
		r.registerWebhook(ctx, ev.ChatID)
	default:
		return false, nil
	}
	return true, nil
}

// startTask begins the task flow: inline titles above the quick-create
// threshold skip straight to execution, otherwise the dialog collects the
// title on the next message.
func (r *Router) startTask(ctx context.Context, ev *types.InboundEvent, title string) error {
	if len(title) >= quickCreateMin {
		return r.exec.Execute(ctx, &types.PendingAction{
			Kind:   types.ActionCreateTask,
			ChatID: ev.ChatID,
			Sender: ev.Sender,
			Fields: taskDraft{Title: title}.fields(),
		})
	}
	r.reply(ctx, ev.ChatID, "📝 *New Task*\n\nWhat's the task title?")
	return r.putSession(ctx, ev, types.StateAwaitTaskTitle, nil)
}

func (r *Router) startNote(ctx context.Context, ev *types.InboundEvent, content string) error {
	if len(content) >= quickCreateMin {
		return r.exec.Execute(ctx, &types.PendingAction{
			Kind:   types.ActionCreateNote,
			ChatID: ev.ChatID,
			Sender: ev.Sender,
			Fields: map[string]string{"text": content},
		})
	}
	r.reply(ctx, ev.ChatID, "📓 *New Note*\n\nWhat's the note? (first line = title)")
	return r.putSession(ctx, ev, types.StateAwaitNote, nil)
}

func (r *Router) startReminder(ctx context.Context, ev *types.InboundEvent, content string) error {
	if content == "" {
		r.reply(ctx, ev.ChatID, "⏰ *New Reminder*\n\nSend: `remind me [what] at [time]`\nExample: `remind me call John at 3pm`")
		return nil
	}
	return r.exec.Execute(ctx, &types.PendingAction{
		Kind:   types.ActionCreateReminder,
		ChatID: ev.ChatID,
		Sender: ev.Sender,
		Fields: map[string]string{"text": content},
	})
}

func (r *Router) sendHelp(ctx context.Context, chatID int64) {
	r.send.Send(ctx, chatID, types.Reply{Text: helpText, Keyboard: mainKeyboard()})
}

func (r *Router) sendTaskSummary(ctx context.Context, chatID int64) error {
	counts, err := r.store.TaskCounts(ctx)
	if err != nil {
		return fmt.Errorf("task summary: %w", err)
	}
	r.reply(ctx, chatID, fmt.Sprintf(
		"📋 *Task Summary*\n\n📌 To Do: %d\n🔄 In Progress: %d\n✅ Done: %d\n\nUse /todo /inprogress /done to view each",
		counts[types.StatusTodo], counts[types.StatusInProgress], counts[types.StatusDone]))
	return nil
}

var statusLabels = map[string]string{
	types.StatusTodo:       "📌 To Do",
	types.StatusInProgress: "🔄 In Progress",
	types.StatusDone:       "✅ Done",
}

var priorityMarkers = map[string]string{
	types.PriorityUrgent: "🔴",
	types.PriorityHigh:   "🟠",
	types.PriorityMedium: "🟡",
	types.PriorityLow:    "🟢",
}

func (r *Router) sendTasksByStatus(ctx context.Context, chatID int64, status string) error {
	tasks, err := r.store.ListTasksByStatus(ctx, status, 10)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		r.reply(ctx, chatID, fmt.Sprintf("No *%s* tasks.", status))
		return nil
	}

	lines := []string{statusLabels[status] + "\n"}
	var buttons [][]types.Button
	for _, t := range tasks {
		marker, ok := priorityMarkers[t.Priority]
		if !ok {
			marker = "⚪"
		}
		line := fmt.Sprintf("%s #%d %s", marker, t.ID, t.Title)
		if t.DueDate != "" {
			line += " · " + t.DueDate
		}
		if t.Assignee != "" {
			line += " · " + t.Assignee
		}
		lines = append(lines, line)
		if status != types.StatusDone {
			buttons = append(buttons, []types.Button{
				{Text: fmt.Sprintf("✅ Done #%d", t.ID), Data: fmt.Sprintf("done:%d", t.ID)},
			})
		}
	}
	r.send.Send(ctx, chatID, types.Reply{
		Text:     strings.Join(lines, "\n"),
		Inline:   true,
		Keyboard: buttons,
	})
	return nil
}

func (r *Router) sendStats(ctx context.Context, chatID int64) error {
	st, err := r.store.Stats(ctx, r.now())
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	r.reply(ctx, chatID, fmt.Sprintf(
		"📊 *Dashboard*\n\n📋 Total Tasks: %d\n🔄 In Progress: %d\n✅ Done This Week: %d\n⚠️ Overdue: %d\n📝 Notes: %d\n📚 KB Entries: %d",
		st.Total, st.InProgress, st.CompletedWeek, st.Overdue, st.Notes, st.KBEntries))
	return nil
}

func (r *Router) sendTeam(ctx context.Context, chatID int64) error {
	members, err := r.store.ListTeam(ctx)
	if err != nil {
		return fmt.Errorf("team: %w", err)
	}
	if len(members) == 0 {
		r.reply(ctx, chatID, "No team members yet.")
		return nil
	}
	lines := []string{"👥 *Team*\n"}
	for _, m := range members {
		lines = append(lines, fmt.Sprintf("• *%s* [%s] — %d tasks", m.Name, m.Role, m.TaskCount))
	}
	r.reply(ctx, chatID, strings.Join(lines, "\n"))
	return nil
}

func (r *Router) sendOverdue(ctx context.Context, chatID int64) error {
	now := r.now()
	tasks, err := r.store.OverdueTasks(ctx, now.Format("2006-01-02"))
	if err != nil {
		return fmt.Errorf("overdue: %w", err)
	}
	if len(tasks) == 0 {
		r.reply(ctx, chatID, "🎉 No overdue tasks!")
		return nil
	}
	lines := []string{fmt.Sprintf("⚠️ *Overdue Tasks* (%d)\n", len(tasks))}
	for _, t := range tasks {
		line := fmt.Sprintf("• #%d %s", t.ID, t.Title)
		if due, err := time.Parse("2006-01-02", t.DueDate); err == nil {
			line += fmt.Sprintf(" — *%dd overdue*", int(now.Sub(due).Hours()/24))
		}
		if t.Assignee != "" {
			line += fmt.Sprintf(" (%s)", t.Assignee)
		}
		lines = append(lines, line)
	}
	r.reply(ctx, chatID, strings.Join(lines, "\n"))
	return nil
}

func (r *Router) syncGroups(ctx context.Context, chatID int64) error {
	count, err := r.store.SyncGroupKnowledge(ctx, r.now())
	if err != nil {
		return fmt.Errorf("sync groups: %w", err)
	}
	if count == 0 {
		r.reply(ctx, chatID, "📚 No new group messages to sync.")
		return nil
	}
	r.reply(ctx, chatID, fmt.Sprintf("✅ Synced %d group messages → KB\nCategory: *Team Conversations*", count))
	return nil
}

func (r *Router) registerWebhook(ctx context.Context, chatID int64) {
	if r.registrar == nil || r.cfg.PublicURL == "" {
		r.reply(ctx, chatID, "❌ Webhook registration is not configured.")
		return
	}
	if err := r.registrar.RegisterWebhook(r.cfg.PublicURL + "/telegram/webhook"); err != nil {
		r.reply(ctx, chatID, "❌ Failed. Check the bot token and public URL.")
		return
	}
	r.reply(ctx, chatID, "✅ Webhook set!")
}
