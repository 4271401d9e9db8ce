package domain

import "time"

// Task statuses.
const (
	StatusTodo       = "todo"
	StatusInProgress = "in-progress"
	StatusReview     = "review"
	StatusDone       = "done"
)

// Task priorities.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// ValidStatus reports whether s is one of the recognised task statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusDone:
		return true
	}
	return false
}

// ValidPriority reports whether p is one of the recognised priorities.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Comment is an append-only note on a task. Comments are never edited or
// removed once written.
type Comment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Subtask is a lightweight child item embedded in its parent task. Subtask
// ids are unique within the task.
type Subtask struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Status     string     `json:"status"`
	Priority   string     `json:"priority"`
	AssignedTo string     `json:"assigned_to,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	CreatedBy  string     `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
}

// HistoryEntry records one field change on a task. The history list is an
// immutable audit log: entries are only ever appended.
type HistoryEntry struct {
	Action        string    `json:"action"`
	UserID        string    `json:"user_id"`
	PreviousValue string    `json:"previous_value,omitempty"`
	NewValue      string    `json:"new_value,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// UserRef is a denormalized display reference resolved when a task is
// returned to clients.
type UserRef struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Task is the aggregate root of the tracker. OrganizationID is always derived
// from the owning team and must match it.
type Task struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	Status         string         `json:"status"`
	Priority       string         `json:"priority"`
	AssignedTo     string         `json:"assigned_to,omitempty"`
	CreatedBy      string         `json:"created_by"`
	TeamID         string         `json:"team_id"`
	OrganizationID string         `json:"organization_id"`
	DueDate        *time.Time     `json:"due_date,omitempty"`
	EstimatedHours float64        `json:"estimated_hours,omitempty"`
	ActualHours    float64        `json:"actual_hours,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Comments       []Comment      `json:"comments,omitempty"`
	Subtasks       []Subtask      `json:"subtasks,omitempty"`
	History        []HistoryEntry `json:"history,omitempty"`
	IsArchived     bool           `json:"is_archived"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`

	// Display references resolved by the repository on reads, not persisted.
	Assignee *UserRef `json:"assignee,omitempty"`
	Creator  *UserRef `json:"creator,omitempty"`
	TeamName string   `json:"team_name,omitempty"`
}

// IsDone reports whether the task reached its terminal status.
func (t *Task) IsDone() bool {
	return t != nil && t.Status == StatusDone
}
