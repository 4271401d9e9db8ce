package task

import (
	"strconv"
	"strings"
	"time"

	"github.com/trackline/backend/domain"
)

// Patch is the typed update payload for a task. Only the allow-listed fields
// are representable: anything else a client sends simply has nowhere to land.
// A nil field means "leave unchanged"; a zero DueDate clears the due date.
type Patch struct {
	Title          *string    `json:"title,omitempty"`
	Description    *string    `json:"description,omitempty"`
	Status         *string    `json:"status,omitempty"`
	Priority       *string    `json:"priority,omitempty"`
	AssignedTo     *string    `json:"assigned_to,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	ActualHours    *float64   `json:"actual_hours,omitempty"`
	Tags           *[]string  `json:"tags,omitempty"`
}

// Change is the diff entry broadcast with task_updated events. It carries the
// same shape as the history entry it produced.
type Change struct {
	Action        string `json:"action"`
	Field         string `json:"field"`
	PreviousValue string `json:"previous_value"`
	NewValue      string `json:"new_value"`
}

// Validate rejects values outside the recognised enumerations.
func (p Patch) Validate() error {
	if p.Status != nil && !domain.ValidStatus(*p.Status) {
		return domain.NewError(domain.ErrCodeInvalid, "invalid status")
	}
	if p.Priority != nil && !domain.ValidPriority(*p.Priority) {
		return domain.NewError(domain.ErrCodeInvalid, "invalid priority")
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return domain.NewError(domain.ErrCodeInvalid, "title cannot be empty")
	}
	return nil
}

// apply mutates the task in place and returns one change per field whose
// value actually differed. Every change is also appended to the task history.
func (p Patch) apply(task *domain.Task, userID string, now time.Time) []Change {
	var changes []Change

	record := func(field, prev, next string, assign func()) {
		if prev == next {
			return
		}
		assign()
		change := Change{
			Action:        "updated_" + field,
			Field:         field,
			PreviousValue: prev,
			NewValue:      next,
		}
		changes = append(changes, change)
		task.History = append(task.History, domain.HistoryEntry{
			Action:        change.Action,
			UserID:        userID,
			PreviousValue: prev,
			NewValue:      next,
			Timestamp:     now,
		})
	}

	if p.Title != nil {
		record("title", task.Title, *p.Title, func() { task.Title = *p.Title })
	}
	if p.Description != nil {
		record("description", task.Description, *p.Description, func() { task.Description = *p.Description })
	}
	if p.Status != nil {
		record("status", task.Status, *p.Status, func() { task.Status = *p.Status })
	}
	if p.Priority != nil {
		record("priority", task.Priority, *p.Priority, func() { task.Priority = *p.Priority })
	}
	if p.AssignedTo != nil {
		record("assignedTo", task.AssignedTo, *p.AssignedTo, func() { task.AssignedTo = *p.AssignedTo })
	}
	if p.DueDate != nil {
		record("dueDate", formatDue(task.DueDate), formatDue(p.DueDate), func() {
			if p.DueDate.IsZero() {
				task.DueDate = nil
				return
			}
			due := *p.DueDate
			task.DueDate = &due
		})
	}
	if p.EstimatedHours != nil {
		record("estimatedHours", formatHours(task.EstimatedHours), formatHours(*p.EstimatedHours), func() {
			task.EstimatedHours = *p.EstimatedHours
		})
	}
	if p.ActualHours != nil {
		record("actualHours", formatHours(task.ActualHours), formatHours(*p.ActualHours), func() {
			task.ActualHours = *p.ActualHours
		})
	}
	if p.Tags != nil {
		record("tags", strings.Join(task.Tags, ","), strings.Join(*p.Tags, ","), func() {
			task.Tags = append([]string(nil), *p.Tags...)
		})
	}

	return changes
}

// SubtaskPatch is the typed update payload for a single subtask. The same
// allow-list rules as Patch apply; a zero DueDate clears the date.
type SubtaskPatch struct {
	Title      *string    `json:"title,omitempty"`
	Status     *string    `json:"status,omitempty"`
	Priority   *string    `json:"priority,omitempty"`
	AssignedTo *string    `json:"assigned_to,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
}

// Validate rejects values outside the recognised enumerations.
func (p SubtaskPatch) Validate() error {
	if p.Status != nil && !domain.ValidStatus(*p.Status) {
		return domain.NewError(domain.ErrCodeInvalid, "invalid status")
	}
	if p.Priority != nil && !domain.ValidPriority(*p.Priority) {
		return domain.NewError(domain.ErrCodeInvalid, "invalid priority")
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return domain.NewError(domain.ErrCodeInvalid, "title cannot be empty")
	}
	return nil
}

func (p SubtaskPatch) apply(subtask *domain.Subtask) {
	if p.Title != nil {
		subtask.Title = strings.TrimSpace(*p.Title)
	}
	if p.Status != nil {
		subtask.Status = *p.Status
	}
	if p.Priority != nil {
		subtask.Priority = *p.Priority
	}
	if p.AssignedTo != nil {
		subtask.AssignedTo = *p.AssignedTo
	}
	if p.DueDate != nil {
		if p.DueDate.IsZero() {
			subtask.DueDate = nil
		} else {
			due := *p.DueDate
			subtask.DueDate = &due
		}
	}
}

func formatDue(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}
