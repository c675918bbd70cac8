package types

import "time"

// DialogState enumerates the per-chat conversation states. Idle is both the
// initial and terminal state; every flow returns to it.
type DialogState string

const (
	StateIdle              DialogState = "idle"
	StateAwaitTaskTitle    DialogState = "awaiting_task_title"
	StateAwaitTaskPriority DialogState = "awaiting_task_priority"
	StateAwaitTaskDue      DialogState = "awaiting_task_due"
	StateAwaitNote         DialogState = "awaiting_note"
	StateAwaitKBEntry      DialogState = "awaiting_kb_entry"
)

// Known reports whether s is a recognized dialog state. Unknown states are
// treated as a reset by the state machine.
func (s DialogState) Known() bool {
	switch s {
	case StateIdle, StateAwaitTaskTitle, StateAwaitTaskPriority,
		StateAwaitTaskDue, StateAwaitNote, StateAwaitKBEntry:
		return true
	}
	return false
}

// Session is one conversation's dialog state. An absent record is equivalent
// to an idle session with no collected fields.
type Session struct {
	ChatID   string            `json:"chat_id"`
	Username string            `json:"username,omitempty"`
	State    DialogState       `json:"state"`
	Fields   map[string]string `json:"fields"`
	LastSeen time.Time         `json:"last_seen"`
}

// Callback is a decoded inline-button press: action + target id + optional
// parameter. Resolved without consulting dialog state.
type Callback struct {
	Action string
	Target int64
	Param  string
}

// InboundEvent is the platform-independent view of one webhook update.
// Ephemeral; never persisted.
type InboundEvent struct {
	ChatID    int64
	ChatKind  string // "private", "group" or "supergroup"
	ChatTitle string
	SenderID  int64
	Sender    string
	Text      string
	Callback  *Callback
}

// Group reports whether the event originated in a group or supergroup chat.
func (e *InboundEvent) Group() bool {
	return e.ChatKind == "group" || e.ChatKind == "supergroup"
}

// ActionKind identifies the side effect a resolved intent asks for.
type ActionKind string

const (
	ActionCreateTask     ActionKind = "create-task"
	ActionCreateNote     ActionKind = "create-note"
	ActionCreateKBEntry  ActionKind = "create-kb-entry"
	ActionCreateReminder ActionKind = "create-reminder"
	ActionSetStatus      ActionKind = "set-status"
	ActionSearchKB       ActionKind = "search-kb"
)

// PendingAction is a transient instruction produced by router or dialog
// resolution and consumed immediately by the executor.
type PendingAction struct {
	Kind   ActionKind
	ChatID int64
	Sender string
	Fields map[string]string
}
