package task

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trackline/backend/domain"
	"github.com/trackline/backend/notify"
	"github.com/trackline/backend/repository"
	"github.com/trackline/backend/usecase/access"
)

// UseCase owns the task lifecycle: creation, allow-listed updates with change
// history, append-only comments and subtasks. Every mutation broadcasts to
// the owning team's room after the write; broadcast failures are logged and
// never surfaced to the caller.
type UseCase struct {
	tasks  repository.TaskRepository
	access *access.Service
	broker notify.Broker
	logger *zap.Logger
}

func New(tasks repository.TaskRepository, accessSvc *access.Service, broker notify.Broker, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:  tasks,
		access: accessSvc,
		broker: broker,
		logger: logger,
	}
}

// CreateInput carries the client-supplied fields for a new task. The
// organization is always taken from the caller, never from the payload.
type CreateInput struct {
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Priority       string     `json:"priority"`
	AssignedTo     string     `json:"assigned_to"`
	TeamID         string     `json:"team_id"`
	DueDate        *time.Time `json:"due_date"`
	EstimatedHours float64    `json:"estimated_hours"`
	Tags           []string   `json:"tags"`
}

// ListQuery mirrors the task listing query parameters.
type ListQuery struct {
	TeamID     string
	Status     string
	AssignedTo string
	Priority   string
	Page       int
	Limit      int
	SortBy     string
	SortOrder  string
}

// ListResult bundles one page of tasks with the numbers the transport layer
// needs to build pagination metadata.
type ListResult struct {
	Tasks []domain.Task
	Total int
	Page  int
	Limit int
}

func (uc *UseCase) Create(ctx context.Context, caller domain.Identity, input CreateInput) (*domain.Task, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "title is required")
	}
	if input.TeamID == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "team_id is required")
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !domain.ValidPriority(priority) {
		return nil, domain.NewError(domain.ErrCodeInvalid, "invalid priority")
	}

	if _, err := uc.access.RequireTeamMember(ctx, caller, input.TeamID); err != nil {
		return nil, err
	}

	now := time.Now()
	task := &domain.Task{
		ID:             uuid.NewString(),
		Title:          strings.TrimSpace(input.Title),
		Description:    input.Description,
		Status:         domain.StatusTodo,
		Priority:       priority,
		AssignedTo:     input.AssignedTo,
		CreatedBy:      caller.UserID,
		TeamID:         input.TeamID,
		OrganizationID: caller.OrganizationID,
		DueDate:        input.DueDate,
		EstimatedHours: input.EstimatedHours,
		Tags:           input.Tags,
		History: []domain.HistoryEntry{{
			Action:    "created",
			UserID:    caller.UserID,
			NewValue:  "Task created",
			Timestamp: now,
		}},
	}

	if _, err := uc.tasks.Create(ctx, task); err != nil {
		return nil, err
	}

	created, err := uc.tasks.GetScoped(ctx, task.ID, caller.OrganizationID)
	if err != nil {
		return nil, err
	}

	uc.publish(ctx, notify.TeamRoom(created.TeamID), notify.NewEvent(notify.EventTaskCreated, map[string]interface{}{
		"task": created,
		"created_by": map[string]string{
			"id":   caller.UserID,
			"name": caller.DisplayName(),
		},
	}))

	return created, nil
}

func (uc *UseCase) Get(ctx context.Context, caller domain.Identity, taskID string) (*domain.Task, error) {
	return uc.access.RequireTaskAccess(ctx, caller, taskID)
}

func (uc *UseCase) List(ctx context.Context, caller domain.Identity, query ListQuery) (*ListResult, error) {
	var teamIDs []string
	if query.TeamID != "" {
		if _, err := uc.access.RequireTeamMember(ctx, caller, query.TeamID); err != nil {
			return nil, err
		}
		teamIDs = []string{query.TeamID}
	} else {
		scope, err := uc.access.TeamScope(ctx, caller)
		if err != nil {
			return nil, err
		}
		teamIDs = scope
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	limit := query.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	tasks, total, err := uc.tasks.List(ctx, repository.TaskFilter{
		OrganizationID: caller.OrganizationID,
		TeamIDs:        teamIDs,
		Status:         query.Status,
		AssignedTo:     query.AssignedTo,
		Priority:       query.Priority,
		Page:           page,
		Limit:          limit,
		SortBy:         query.SortBy,
		SortOrder:      query.SortOrder,
	})
	if err != nil {
		return nil, err
	}

	return &ListResult{Tasks: tasks, Total: total, Page: page, Limit: limit}, nil
}

func (uc *UseCase) Update(ctx context.Context, caller domain.Identity, taskID string, patch Patch) (*domain.Task, []Change, error) {
	if err := patch.Validate(); err != nil {
		return nil, nil, err
	}

	task, err := uc.access.RequireTaskAccess(ctx, caller, taskID)
	if err != nil {
		return nil, nil, err
	}

	changes := patch.apply(task, caller.UserID, time.Now())
	if len(changes) == 0 {
		return task, nil, nil
	}

	if err := uc.tasks.Update(ctx, task); err != nil {
		return nil, nil, err
	}

	updated, err := uc.tasks.GetScoped(ctx, task.ID, caller.OrganizationID)
	if err != nil {
		return nil, nil, err
	}

	uc.publish(ctx, notify.TeamRoom(updated.TeamID), notify.NewEvent(notify.EventTaskUpdated, map[string]interface{}{
		"task": updated,
		"updated_by": map[string]string{
			"id":   caller.UserID,
			"name": caller.DisplayName(),
		},
		"changes": changes,
	}))

	return updated, changes, nil
}

func (uc *UseCase) AddComment(ctx context.Context, caller domain.Identity, taskID, message string) (*domain.Comment, error) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "comment message is required")
	}

	task, err := uc.access.RequireTaskAccess(ctx, caller, taskID)
	if err != nil {
		return nil, err
	}

	comment := domain.Comment{
		ID:        uuid.NewString(),
		UserID:    caller.UserID,
		UserName:  caller.DisplayName(),
		Message:   trimmed,
		CreatedAt: time.Now(),
	}

	if err := uc.tasks.AppendComment(ctx, task.ID, comment); err != nil {
		return nil, err
	}

	uc.publish(ctx, notify.TeamRoom(task.TeamID), notify.NewEvent(notify.EventCommentAdded, map[string]interface{}{
		"task_id": task.ID,
		"comment": comment,
	}))

	return &comment, nil
}

// SubtaskInput carries the client-supplied fields for a new subtask.
type SubtaskInput struct {
	Title      string     `json:"title"`
	Priority   string     `json:"priority"`
	AssignedTo string     `json:"assigned_to"`
	DueDate    *time.Time `json:"due_date"`
}

func (uc *UseCase) AddSubtask(ctx context.Context, caller domain.Identity, taskID string, input SubtaskInput) (*domain.Subtask, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "subtask title is required")
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !domain.ValidPriority(priority) {
		return nil, domain.NewError(domain.ErrCodeInvalid, "invalid priority")
	}

	task, err := uc.access.RequireTaskAccess(ctx, caller, taskID)
	if err != nil {
		return nil, err
	}

	subtask := domain.Subtask{
		ID:         uuid.NewString(),
		Title:      strings.TrimSpace(input.Title),
		Status:     domain.StatusTodo,
		Priority:   priority,
		AssignedTo: input.AssignedTo,
		DueDate:    input.DueDate,
		CreatedBy:  caller.UserID,
		CreatedAt:  time.Now(),
	}

	if err := uc.tasks.AppendSubtask(ctx, task.ID, subtask); err != nil {
		return nil, err
	}

	uc.publish(ctx, notify.TeamRoom(task.TeamID), notify.NewEvent(notify.EventSubtaskAdded, map[string]interface{}{
		"task_id": task.ID,
		"subtask": subtask,
	}))

	return &subtask, nil
}

func (uc *UseCase) UpdateSubtask(ctx context.Context, caller domain.Identity, taskID, subtaskID string, patch SubtaskPatch) (*domain.Subtask, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	task, err := uc.access.RequireTaskAccess(ctx, caller, taskID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range task.Subtasks {
		if task.Subtasks[i].ID == subtaskID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, domain.ErrSubtaskNotFound
	}

	patch.apply(&task.Subtasks[idx])
	if err := uc.tasks.ReplaceSubtasks(ctx, task.ID, task.Subtasks); err != nil {
		return nil, err
	}

	subtask := task.Subtasks[idx]
	uc.publish(ctx, notify.TeamRoom(task.TeamID), notify.NewEvent(notify.EventSubtaskUpdated, map[string]interface{}{
		"task_id": task.ID,
		"subtask": subtask,
	}))

	return &subtask, nil
}

func (uc *UseCase) RemoveSubtask(ctx context.Context, caller domain.Identity, taskID, subtaskID string) error {
	task, err := uc.access.RequireTaskAccess(ctx, caller, taskID)
	if err != nil {
		return err
	}

	kept := task.Subtasks[:0]
	for _, st := range task.Subtasks {
		if st.ID != subtaskID {
			kept = append(kept, st)
		}
	}
	if len(kept) == len(task.Subtasks) {
		return domain.ErrSubtaskNotFound
	}

	if err := uc.tasks.ReplaceSubtasks(ctx, task.ID, kept); err != nil {
		return err
	}

	uc.publish(ctx, notify.TeamRoom(task.TeamID), notify.NewEvent(notify.EventSubtaskDeleted, map[string]interface{}{
		"task_id":    task.ID,
		"subtask_id": subtaskID,
	}))

	return nil
}

func (uc *UseCase) Delete(ctx context.Context, caller domain.Identity, taskID string) error {
	task, err := uc.access.RequireTaskAccess(ctx, caller, taskID)
	if err != nil {
		return err
	}

	if err := uc.tasks.Delete(ctx, task.ID, caller.OrganizationID); err != nil {
		return err
	}

	uc.publish(ctx, notify.TeamRoom(task.TeamID), notify.NewEvent(notify.EventTaskDeleted, map[string]interface{}{
		"task_id": task.ID,
		"deleted_by": map[string]string{
			"id":   caller.UserID,
			"name": caller.DisplayName(),
		},
	}))

	return nil
}

// publish is best-effort: a write that succeeded is never failed because the
// broadcast could not be delivered.
func (uc *UseCase) publish(ctx context.Context, room string, event notify.Event) {
	if uc.broker == nil {
		return
	}
	if err := uc.broker.Publish(ctx, room, event); err != nil {
		uc.logger.Warn("event broadcast failed",
			zap.String("room", room),
			zap.String("event", event.Name),
			zap.Error(err),
		)
	}
}
