package bot

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/user/workbase/internal/store"
	"github.com/user/workbase/internal/types"
)

// reminderTitleMax bounds quick-reminder titles.
const reminderTitleMax = 200

// Executor performs the side effect a resolved PendingAction asks for:
// exactly one create/update against the store (the store commits the audit
// entry with it) and exactly one outbound response. The response is sent
// only after the mutation commits, and a delivery failure never rolls the
// mutation back.
type Executor struct {
	store *store.Store
	send  types.Sender
	now   func() time.Time
}

// NewExecutor creates an Executor over the given store and sender.
func NewExecutor(st *store.Store, sender types.Sender) *Executor {
	return &Executor{store: st, send: sender, now: time.Now}
}

// Execute dispatches one PendingAction.
func (e *Executor) Execute(ctx context.Context, a *types.PendingAction) error {
	switch a.Kind {
	case types.ActionCreateTask:
		return e.createTask(ctx, a)
	case types.ActionCreateNote:
		return e.createNote(ctx, a)
	case types.ActionCreateKBEntry:
		return e.createKBEntry(ctx, a)
	case types.ActionCreateReminder:
		return e.createReminder(ctx, a)
	case types.ActionSetStatus:
		return e.setStatus(ctx, a)
	case types.ActionSearchKB:
		return e.searchKB(ctx, a)
	default:
		return fmt.Errorf("unknown action kind: %s", a.Kind)
	}
}

func (e *Executor) createTask(ctx context.Context, a *types.PendingAction) error {
	task := &types.Task{
		Title:      a.Fields[fieldTitle],
		Priority:   a.Fields[fieldPriority],
		DueDate:    a.Fields[fieldDue],
		AssignedBy: "Telegram:" + a.Sender,
	}
	id, err := e.store.CreateTask(ctx, task)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	text := fmt.Sprintf("✅ Task #%d created!\n*%s*\nPriority: %s", id, task.Title, task.Priority)
	if task.DueDate != "" {
		text += "\nDue: " + task.DueDate
	}
	e.send.Send(ctx, a.ChatID, types.Reply{
		Text:     text,
		Inline:   true,
		Keyboard: statusButtons(id),
	})
	return nil
}

func (e *Executor) createNote(ctx context.Context, a *types.PendingAction) error {
	text := a.Fields["text"]
	note := &types.Note{Title: noteTitle(text), Content: text}
	if _, err := e.store.CreateNote(ctx, note); err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	e.send.Send(ctx, a.ChatID, types.Reply{Text: fmt.Sprintf("📓 Note saved!\n*%s*", note.Title)})
	return nil
}

func (e *Executor) createKBEntry(ctx context.Context, a *types.PendingAction) error {
	entry := &types.KBEntry{
		Title:    a.Fields["title"],
		Content:  a.Fields["content"],
		Category: a.Fields["category"],
	}
	if _, err := e.store.CreateKBEntry(ctx, entry); err != nil {
		return fmt.Errorf("create kb entry: %w", err)
	}
	e.send.Send(ctx, a.ChatID, types.Reply{
		Text: fmt.Sprintf("📚 KB entry added!\n*%s* → _%s_", entry.Title, entry.Category),
	})
	return nil
}

func (e *Executor) createReminder(ctx context.Context, a *types.PendingAction) error {
	text := a.Fields["text"]
	title := text
	if runes := []rune(title); len(runes) > reminderTitleMax {
		title = string(runes[:reminderTitleMax])
	}
	rem := &types.Reminder{
		ChatID:      a.ChatID,
		Title:       title,
		Description: "From Telegram: " + a.Sender,
		RemindAt:    parseRemindAt(text, e.now()),
	}
	if _, err := e.store.CreateReminder(ctx, rem); err != nil {
		return fmt.Errorf("create reminder: %w", err)
	}
	e.send.Send(ctx, a.ChatID, types.Reply{Text: fmt.Sprintf("⏰ Reminder set!\n_%s_", text)})
	return nil
}

func (e *Executor) searchKB(ctx context.Context, a *types.PendingAction) error {
	query := a.Fields["query"]
	entries, err := e.store.SearchKB(ctx, query, 5)
	if err != nil {
		return fmt.Errorf("search kb: %w", err)
	}
	if len(entries) == 0 {
		e.send.Send(ctx, a.ChatID, types.Reply{Text: fmt.Sprintf("🔍 No KB results for `%s`", query)})
		return nil
	}
	lines := []string{fmt.Sprintf("📚 *KB: %s*\n", query)}
	for _, entry := range entries {
		preview := entry.Content
		if runes := []rune(preview); len(runes) > 120 {
			preview = string(runes[:120])
		}
		preview = strings.ReplaceAll(preview, "\n", " ")
		lines = append(lines, fmt.Sprintf("*%s* [%s]\n_%s_\n", entry.Title, entry.Category, preview))
	}
	e.send.Send(ctx, a.ChatID, types.Reply{Text: strings.Join(lines, "\n")})
	return nil
}

// setStatus applies an absolute status write, so a retried action leaves
// the task unchanged.
func (e *Executor) setStatus(ctx context.Context, a *types.PendingAction) error {
	id, err := strconv.ParseInt(a.Fields["id"], 10, 64)
	if err != nil {
		return fmt.Errorf("set status: bad task id %q", a.Fields["id"])
	}
	status := a.Fields["status"]
	if !types.ValidStatus(status) {
		e.send.Send(ctx, a.ChatID, types.Reply{Text: fmt.Sprintf("Unknown status: %s", status)})
		return nil
	}
	if err := e.store.UpdateTaskStatus(ctx, id, status); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if status == types.StatusDone {
		e.send.Send(ctx, a.ChatID, types.Reply{Text: fmt.Sprintf("✅ Task #%d marked *Done*!", id)})
	} else {
		e.send.Send(ctx, a.ChatID, types.Reply{Text: fmt.Sprintf("✅ Task #%d → *%s*", id, status)})
	}
	return nil
}

// HandleCallback translates a button press into its PendingAction, bypassing
// dialog state.
func (e *Executor) HandleCallback(ctx context.Context, chatID int64, cb *types.Callback) error {
	target := strconv.FormatInt(cb.Target, 10)
	switch cb.Action {
	case "status":
		return e.Execute(ctx, &types.PendingAction{
			Kind:   types.ActionSetStatus,
			ChatID: chatID,
			Fields: map[string]string{"id": target, "status": cb.Param},
		})
	case "done":
		return e.Execute(ctx, &types.PendingAction{
			Kind:   types.ActionSetStatus,
			ChatID: chatID,
			Fields: map[string]string{"id": target, "status": types.StatusDone},
		})
	default:
		// Unknown button payloads are ignored rather than errored; old
		// keyboards may outlive the actions they referenced.
		return nil
	}
}

// ParseCallback decodes an "action:target[:param]" callback-data string.
func ParseCallback(data string) (*types.Callback, bool) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) < 2 {
		return nil, false
	}
	target, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, false
	}
	cb := &types.Callback{Action: parts[0], Target: target}
	if len(parts) == 3 {
		cb.Param = parts[2]
	}
	return cb, true
}

// remindAtRe spots a trailing "at 15:04" / "at 3pm" clause in reminder text.
var remindAtRe = regexp.MustCompile(`(?i)\bat\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)

// parseRemindAt extracts a delivery time from reminder text: today at the
// given clock time, or tomorrow if that has already passed. Returns nil when
// the text names no recognizable time, in which case the reminder is stored
// without a delivery schedule.
func parseRemindAt(text string, now time.Time) *time.Time {
	m := remindAtRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch strings.ToLower(m[3]) {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return nil
	}
	at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return &at
}

// statusButtons builds the inline controls attached to task confirmations
// and task lists.
func statusButtons(id int64) [][]types.Button {
	return [][]types.Button{{
		{Text: "🔄 In Progress", Data: fmt.Sprintf("status:%d:in_progress", id)},
		{Text: "✅ Done", Data: fmt.Sprintf("done:%d", id)},
	}}
}
