package repository

import (
	"context"

	"github.com/trackline/backend/domain"
)

// TaskFilter scopes a task listing. TeamIDs is the caller's visibility set:
// listings never return tasks from teams outside it.
type TaskFilter struct {
	OrganizationID string
	TeamIDs        []string
	Status         string
	AssignedTo     string
	Priority       string
	Page           int
	Limit          int
	SortBy         string
	SortOrder      string
}

// StatusCount is one bucket of the dashboard aggregation.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	// GetScoped fetches a task only when it belongs to the given
	// organization. A cross-tenant id behaves exactly like an absent one.
	GetScoped(ctx context.Context, id, orgID string) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, int, error)
	// Update persists the whole document. Concurrent writers race with
	// last-writer-wins semantics; there is no version token.
	Update(ctx context.Context, task *domain.Task) error
	AppendComment(ctx context.Context, taskID string, comment domain.Comment) error
	AppendSubtask(ctx context.Context, taskID string, subtask domain.Subtask) error
	// ReplaceSubtasks overwrites the whole subtask list, following the same
	// whole-document write model as Update.
	ReplaceSubtasks(ctx context.Context, taskID string, subtasks []domain.Subtask) error
	Delete(ctx context.Context, id, orgID string) error
	CountByStatus(ctx context.Context, orgID string, teamIDs []string) ([]StatusCount, error)
	// ListAssigned returns the user's open tasks ordered by due date.
	ListAssigned(ctx context.Context, orgID, userID string, limit int) ([]domain.Task, error)
	// ListRecent returns the latest-touched tasks across the given teams.
	ListRecent(ctx context.Context, orgID string, teamIDs []string, limit int) ([]domain.Task, error)
}
