package bot

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/user/workbase/internal/types"
)

// Field keys used in session context maps. Each dialog variant reads and
// writes only its own keys.
const (
	fieldTitle    = "title"
	fieldPriority = "priority"
	fieldDue      = "due_date"
)

// noteTitleMax bounds the note title taken from the first line.
const noteTitleMax = 120

var dueDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// taskDraft is the typed view of a task dialog's collected fields.
type taskDraft struct {
	Title    string
	Priority string
	Due      string
}

func taskDraftFrom(fields map[string]string) taskDraft {
	return taskDraft{
		Title:    fields[fieldTitle],
		Priority: fields[fieldPriority],
		Due:      fields[fieldDue],
	}
}

func (d taskDraft) fields() map[string]string {
	return map[string]string{
		fieldTitle:    d.Title,
		fieldPriority: d.Priority,
		fieldDue:      d.Due,
	}
}

// continueDialog advances an in-progress dialog with the user's next
// message. Every path either re-persists the session in its next state or
// resets it to idle; completion hands a PendingAction to the executor.
func (r *Router) continueDialog(ctx context.Context, ev *types.InboundEvent, sess *types.Session) error {
	text := strings.TrimSpace(ev.Text)

	switch sess.State {
	case types.StateAwaitTaskTitle:
		draft := taskDraft{Title: text}
		r.reply(ctx, ev.ChatID, fmt.Sprintf("✅ Title: *%s*\n\nPriority? (low/medium/high/urgent) or skip:", text))
		return r.putSession(ctx, ev, types.StateAwaitTaskPriority, draft.fields())

	case types.StateAwaitTaskPriority:
		draft := taskDraftFrom(sess.Fields)
		p := strings.ToLower(text)
		if !types.ValidPriority(p) {
			p = types.PriorityMedium
		}
		draft.Priority = p
		r.reply(ctx, ev.ChatID, fmt.Sprintf("Priority: *%s*\n\nDue date? (YYYY-MM-DD) or skip:", p))
		return r.putSession(ctx, ev, types.StateAwaitTaskDue, draft.fields())

	case types.StateAwaitTaskDue:
		draft := taskDraftFrom(sess.Fields)
		if dueDateRe.MatchString(text) {
			draft.Due = text
		}
		if err := r.exec.Execute(ctx, &types.PendingAction{
			Kind:   types.ActionCreateTask,
			ChatID: ev.ChatID,
			Sender: ev.Sender,
			Fields: draft.fields(),
		}); err != nil {
			return err
		}
		return r.putSession(ctx, ev, types.StateIdle, nil)

	case types.StateAwaitNote:
		if err := r.exec.Execute(ctx, &types.PendingAction{
			Kind:   types.ActionCreateNote,
			ChatID: ev.ChatID,
			Sender: ev.Sender,
			Fields: map[string]string{"text": ev.Text},
		}); err != nil {
			return err
		}
		return r.putSession(ctx, ev, types.StateIdle, nil)

	case types.StateAwaitKBEntry:
		parts := splitKBParts(text)
		if len(parts) < 2 {
			// Input-format error: explain and return to idle without creating.
			r.reply(ctx, ev.ChatID, "❌ Format: `Title | Content | Category`")
			return r.putSession(ctx, ev, types.StateIdle, nil)
		}
		fields := map[string]string{"title": parts[0], "content": parts[1]}
		if len(parts) > 2 {
			fields["category"] = parts[2]
		}
		if err := r.exec.Execute(ctx, &types.PendingAction{
			Kind:   types.ActionCreateKBEntry,
			ChatID: ev.ChatID,
			Sender: ev.Sender,
			Fields: fields,
		}); err != nil {
			return err
		}
		return r.putSession(ctx, ev, types.StateIdle, nil)

	default:
		// Unknown state resets to idle.
		r.reply(ctx, ev.ChatID, "↩️ Cancelled. /help for commands.")
		return r.putSession(ctx, ev, types.StateIdle, nil)
	}
}

// splitKBParts splits pipe-delimited KB input into trimmed parts.
func splitKBParts(text string) []string {
	raw := strings.Split(text, "|")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		parts = append(parts, strings.TrimSpace(p))
	}
	return parts
}

// noteTitle derives a note title from its first line, truncated to
// noteTitleMax runes.
func noteTitle(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	runes := []rune(line)
	if len(runes) > noteTitleMax {
		return string(runes[:noteTitleMax])
	}
	return line
}
