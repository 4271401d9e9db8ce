package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/trackline/backend/api/transport"
	"github.com/trackline/backend/pkg/httpcontext"
	taskUC "github.com/trackline/backend/usecase/task"
)

type TaskHandler struct {
	baseHandler
	uc *taskUC.UseCase
}

func NewTaskHandler(uc *taskUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List tasks visible to the caller
// @Tags tasks
// @Router /api/tasks [get]
func (h *TaskHandler) List(ctx *fasthttp.RequestCtx) {
	caller, ok := h.identity(ctx)
	if !ok {
		return
	}

	args := ctx.QueryArgs()
	query := taskUC.ListQuery{
		TeamID:     string(args.Peek("teamId")),
		Status:     string(args.Peek("status")),
		AssignedTo: string(args.Peek("assignedTo")),
		Priority:   string(args.Peek("priority")),
		Page:       parseInt(string(args.Peek("page")), 1),
		Limit:      parseInt(string(args.Peek("limit")), 20),
		SortBy:     string(args.Peek("sortBy")),
		SortOrder:  string(args.Peek("sortOrder")),
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.uc.List(stdCtx, caller, query)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}

	envelope := transport.NewSuccess("", result.Tasks)
	envelope.Pagination = transport.NewPagination(result.Page, result.Limit, result.Total)
	h.respondJSON(ctx, http.StatusOK, envelope)
}

// @Summary Get one task
// @Tags tasks
// @Router /api/tasks/{taskId} [get]
func (h *TaskHandler) Get(ctx *fasthttp.RequestCtx) {
	caller, ok := h.identity(ctx)
	if !ok {
		return
	}
	taskID, _ := ctx.UserValue("taskId").(string)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.Get(stdCtx, caller, taskID)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, "", task)
}

// @Summary Create a task
// @Tags tasks
// @Router /api/tasks [post]
func (h *TaskHandler) Create(ctx *fasthttp.RequestCtx) {
	caller, ok := h.identity(ctx)
	if !ok {
		return
	}

	var req transport.CreateTaskRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.Create(stdCtx, caller, taskUC.CreateInput{
		Title:          req.Title,
		Description:    req.Description,
		Priority:       req.Priority,
		AssignedTo:     req.AssignedTo,
		TeamID:         req.TeamID,
		DueDate:        transport.ParseDueDate(req.DueDate),
		EstimatedHours: req.EstimatedHours,
		Tags:           req.Tags,
	})
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, "Task created successfully", task)
}

// @Summary Update allow-listed task fields
// @Tags tasks
// @Router /api/tasks/{taskId} [put]
func (h *TaskHandler) Update(ctx *fasthttp.RequestCtx) {
	caller, ok := h.identity(ctx)
	if !ok {
		return
	}
	taskID, _ := ctx.UserValue("taskId").(string)

	var req transport.UpdateTaskRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	patch := taskUC.Patch{
		Title:          req.Title,
		Description:    req.Description,
		Status:         req.Status,
		Priority:       req.Priority,
		AssignedTo:     req.AssignedTo,
		EstimatedHours: req.EstimatedHours,
		ActualHours:    req.ActualHours,
		Tags:           req.Tags,
	}
	if req.DueDate != nil {
		// an empty string clears the due date
		due, ok := transport.ParseDueDatePatch(*req.DueDate)
		if !ok {
			h.respondInvalid(ctx, "due_date must be RFC3339")
			return
		}
		patch.DueDate = due
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, _, err := h.uc.Update(stdCtx, caller, taskID, patch)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, "Task updated successfully", task)
}

// @Summary Delete a task
// @Tags tasks
// @Router /api/tasks/{taskId} [delete]
func (h *TaskHandler) Delete(ctx *fasthttp.RequestCtx) {
	caller, ok := h.identity(ctx)
	if !ok {
		return
	}
	taskID, _ := ctx.UserValue("taskId").(string)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Delete(stdCtx, caller, taskID); err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, "Task deleted successfully", nil)
}

// @Summary Add a comment to a task
// @Tags tasks
// @Router /api/tasks/{taskId}/comments [post]
func (h *TaskHandler) AddComment(ctx *fasthttp.RequestCtx) {
	caller, ok := h.identity(ctx)
	if !ok {
		return
	}
	taskID, _ := ctx.UserValue("taskId").(string)

	var req transport.AddCommentRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	comment, err := h.uc.AddComment(stdCtx, caller, taskID, req.Message)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, "Comment added successfully", comment)
}

// @Summary Add a subtask to a task
// @Tags tasks
// @Router /api/tasks/{taskId}/subtasks [post]
func (h *TaskHandler) AddSubtask(ctx *fasthttp.RequestCtx) {
	caller, ok := h.identity(ctx)
	if !ok {
		return
	}
	taskID, _ := ctx.UserValue("taskId").(string)

	var req transport.AddSubtaskRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	subtask, err := h.uc.AddSubtask(stdCtx, caller, taskID, taskUC.SubtaskInput{
		Title:      req.Title,
		Priority:   req.Priority,
		AssignedTo: req.AssignedTo,
		DueDate:    transport.ParseDueDate(req.DueDate),
	})
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, "Subtask added successfully", subtask)
}

// @Summary Update a subtask
// @Tags tasks
// @Router /api/tasks/{taskId}/subtasks/{subtaskId} [put]
func (h *TaskHandler) UpdateSubtask(ctx *fasthttp.RequestCtx) {
	caller, ok := h.identity(ctx)
	if !ok {
		return
	}
	taskID, _ := ctx.UserValue("taskId").(string)
	subtaskID, _ := ctx.UserValue("subtaskId").(string)

	var req transport.UpdateSubtaskRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	patch := taskUC.SubtaskPatch{
		Title:      req.Title,
		Status:     req.Status,
		Priority:   req.Priority,
		AssignedTo: req.AssignedTo,
	}
	if req.DueDate != nil {
		due, ok := transport.ParseDueDatePatch(*req.DueDate)
		if !ok {
			h.respondInvalid(ctx, "due_date must be RFC3339")
			return
		}
		patch.DueDate = due
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	subtask, err := h.uc.UpdateSubtask(stdCtx, caller, taskID, subtaskID, patch)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, "Subtask updated successfully", subtask)
}

// @Summary Remove a subtask
// @Tags tasks
// @Router /api/tasks/{taskId}/subtasks/{subtaskId} [delete]
func (h *TaskHandler) RemoveSubtask(ctx *fasthttp.RequestCtx) {
	caller, ok := h.identity(ctx)
	if !ok {
		return
	}
	taskID, _ := ctx.UserValue("taskId").(string)
	subtaskID, _ := ctx.UserValue("subtaskId").(string)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.RemoveSubtask(stdCtx, caller, taskID, subtaskID); err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, "Subtask deleted successfully", nil)
}

func parseInt(value string, fallback int) int {
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}
