package types

import "time"

// Task statuses and priorities use the fixed vocabularies below; anything
// else is rejected or defaulted at the edges, never stored.
const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// ValidStatus reports whether s is one of the known task statuses.
func ValidStatus(s string) bool {
	return s == StatusTodo || s == StatusInProgress || s == StatusDone
}

// ValidPriority reports whether p is one of the known task priorities.
func ValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh || p == PriorityUrgent
}

type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	AssignedTo  int64     `json:"assigned_to,omitempty"`
	AssignedBy  string    `json:"assigned_by,omitempty"`
	DueDate     string    `json:"due_date,omitempty"` // YYYY-MM-DD, empty if none
	Tags        string    `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Assignee is the joined team member name, populated on reads only.
	Assignee string `json:"assignee,omitempty"`
}

type Note struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type KBEntry struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultKBCategory is applied when an entry is created without one.
const DefaultKBCategory = "General"

type Reminder struct {
	ID          int64      `json:"id"`
	ChatID      int64      `json:"chat_id,omitempty"` // originating chat; 0 if created via the service API
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	RemindAt    *time.Time `json:"remind_at,omitempty"`
	RepeatType  string     `json:"repeat_type"`
	Notified    bool       `json:"notified"`
	CreatedAt   time.Time  `json:"created_at"`
}

type TeamMember struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Email     string `json:"email,omitempty"`

	// TaskCount is populated on reads only.
	TaskCount int `json:"task_count"`
}

// GroupMessage is a group-chat message archived for later promotion into the
// knowledge base.
type GroupMessage struct {
	ID        int64     `json:"id"`
	ChatID    string    `json:"chat_id"`
	ChatTitle string    `json:"chat_title"`
	Speaker   string    `json:"speaker"`
	Message   string    `json:"message"`
	Synced    bool      `json:"synced_to_kb"`
	Timestamp time.Time `json:"timestamp"`
}

// Activity is one audit-log entry. Every data-mutating action records one in
// the same transaction as the mutation.
type Activity struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats is the aggregate dashboard snapshot.
type Stats struct {
	Total         int `json:"total"`
	Todo          int `json:"todo"`
	InProgress    int `json:"in_progress"`
	Done          int `json:"done"`
	CompletedWeek int `json:"completed_week"`
	Overdue       int `json:"overdue"`
	Notes         int `json:"notes"`
	KBEntries     int `json:"kb_entries"`
}
