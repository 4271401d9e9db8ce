package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trackline/backend/domain"
	"github.com/trackline/backend/repository"
)

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pool: pool}
}

// taskColumns selects the task document plus denormalized display references
// for the assignee, the creator and the owning team.
const taskColumns = `
	t.id, t.title, t.description, t.status, t.priority, t.assigned_to, t.created_by,
	t.team_id, t.organization_id, t.due_date, t.estimated_hours, t.actual_hours,
	t.tags, t.comments, t.subtasks, t.history, t.is_archived, t.created_at, t.updated_at,
	a.id, a.first_name, a.last_name, a.email,
	c.id, c.first_name, c.last_name, c.email,
	COALESCE(tm.name, '')
`

const taskJoins = `
	LEFT JOIN users a ON a.id = t.assigned_to
	LEFT JOIN users c ON c.id = t.created_by
	LEFT JOIN teams tm ON tm.id = t.team_id
`

var taskSortColumns = map[string]string{
	"createdAt": "t.created_at",
	"updatedAt": "t.updated_at",
	"dueDate":   "t.due_date",
	"priority":  "t.priority",
	"status":    "t.status",
	"title":     "t.title",
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO tasks (id, title, description, status, priority, assigned_to, created_by,
		team_id, organization_id, due_date, estimated_hours, actual_hours,
		tags, comments, subtasks, history, is_archived)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	RETURNING created_at, updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.AssignedTo,
		task.CreatedBy,
		task.TeamID,
		task.OrganizationID,
		nullTime(task.DueDate),
		task.EstimatedHours,
		task.ActualHours,
		marshalJSON(task.Tags),
		marshalJSON(task.Comments),
		marshalJSON(task.Subtasks),
		marshalJSON(task.History),
		task.IsArchived,
	).Scan(&task.CreatedAt, &task.UpdatedAt); err != nil {
		return nil, err
	}

	return task, nil
}

func (r *taskRepository) GetScoped(ctx context.Context, id, orgID string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t ` + taskJoins + `
	WHERE t.id = $1 AND t.organization_id = $2`
	return scanTask(r.pool.QueryRow(ctx, query, id, orgID))
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, int, error) {
	const where = `
	WHERE t.organization_id = $1
	  AND t.team_id = ANY($2)
	  AND ($3 = '' OR t.status = $3)
	  AND ($4 = '' OR t.assigned_to = $4)
	  AND ($5 = '' OR t.priority = $5)
	`

	limit := clampLimit(filter.Limit)
	page := filter.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	sortCol, ok := taskSortColumns[filter.SortBy]
	if !ok {
		sortCol = "t.created_at"
	}
	direction := "DESC"
	if filter.SortOrder == "asc" {
		direction = "ASC"
	}

	teamIDs := filter.TeamIDs
	if teamIDs == nil {
		teamIDs = []string{}
	}

	query := fmt.Sprintf(`SELECT %s FROM tasks t %s %s ORDER BY %s %s, t.id %s LIMIT $6 OFFSET $7`,
		taskColumns, taskJoins, where, sortCol, direction, direction)

	rows, err := r.pool.Query(ctx, query,
		filter.OrganizationID, teamIDs, filter.Status, filter.AssignedTo, filter.Priority,
		limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM tasks t ` + where
	if err := r.pool.QueryRow(ctx, countQuery,
		filter.OrganizationID, teamIDs, filter.Status, filter.AssignedTo, filter.Priority,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE tasks
	SET title = $2,
		description = $3,
		status = $4,
		priority = $5,
		assigned_to = $6,
		due_date = $7,
		estimated_hours = $8,
		actual_hours = $9,
		tags = $10,
		history = $11,
		is_archived = $12,
		updated_at = NOW()
	WHERE id = $1
	RETURNING updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.AssignedTo,
		nullTime(task.DueDate),
		task.EstimatedHours,
		task.ActualHours,
		marshalJSON(task.Tags),
		marshalJSON(task.History),
		task.IsArchived,
	).Scan(&task.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTaskNotFound
		}
		return err
	}

	return nil
}

func (r *taskRepository) AppendComment(ctx context.Context, taskID string, comment domain.Comment) error {
	const query = `
	UPDATE tasks
	SET comments = comments || $2::jsonb,
		updated_at = NOW()
	WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, taskID, marshalJSON([]domain.Comment{comment}))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *taskRepository) AppendSubtask(ctx context.Context, taskID string, subtask domain.Subtask) error {
	const query = `
	UPDATE tasks
	SET subtasks = subtasks || $2::jsonb,
		updated_at = NOW()
	WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, taskID, marshalJSON([]domain.Subtask{subtask}))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *taskRepository) ReplaceSubtasks(ctx context.Context, taskID string, subtasks []domain.Subtask) error {
	const query = `
	UPDATE tasks
	SET subtasks = $2::jsonb,
		updated_at = NOW()
	WHERE id = $1
	`
	if subtasks == nil {
		subtasks = []domain.Subtask{}
	}
	tag, err := r.pool.Exec(ctx, query, taskID, marshalJSON(subtasks))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, id, orgID string) error {
	const query = `DELETE FROM tasks WHERE id = $1 AND organization_id = $2`
	tag, err := r.pool.Exec(ctx, query, id, orgID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *taskRepository) CountByStatus(ctx context.Context, orgID string, teamIDs []string) ([]repository.StatusCount, error) {
	const query = `
	SELECT status, COUNT(*)
	FROM tasks
	WHERE organization_id = $1 AND team_id = ANY($2)
	GROUP BY status
	`
	if teamIDs == nil {
		teamIDs = []string{}
	}
	rows, err := r.pool.Query(ctx, query, orgID, teamIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []repository.StatusCount
	for rows.Next() {
		var sc repository.StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, sc)
	}
	return counts, rows.Err()
}

func (r *taskRepository) ListAssigned(ctx context.Context, orgID, userID string, limit int) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t ` + taskJoins + `
	WHERE t.organization_id = $1 AND t.assigned_to = $2 AND t.status <> 'done'
	ORDER BY t.due_date ASC NULLS LAST
	LIMIT $3`
	return r.queryTasks(ctx, query, orgID, userID, clampLimit(limit))
}

func (r *taskRepository) ListRecent(ctx context.Context, orgID string, teamIDs []string, limit int) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t ` + taskJoins + `
	WHERE t.organization_id = $1 AND t.team_id = ANY($2)
	ORDER BY t.updated_at DESC
	LIMIT $3`
	if teamIDs == nil {
		teamIDs = []string{}
	}
	return r.queryTasks(ctx, query, orgID, teamIDs, clampLimit(limit))
}

func (r *taskRepository) queryTasks(ctx context.Context, query string, args ...interface{}) ([]domain.Task, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	var (
		due      *time.Time
		tags     []byte
		comments []byte
		subtasks []byte
		history  []byte

		assigneeID, assigneeFirst, assigneeLast, assigneeEmail *string
		creatorID, creatorFirst, creatorLast, creatorEmail     *string
	)

	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&task.AssignedTo,
		&task.CreatedBy,
		&task.TeamID,
		&task.OrganizationID,
		&due,
		&task.EstimatedHours,
		&task.ActualHours,
		&tags,
		&comments,
		&subtasks,
		&history,
		&task.IsArchived,
		&task.CreatedAt,
		&task.UpdatedAt,
		&assigneeID, &assigneeFirst, &assigneeLast, &assigneeEmail,
		&creatorID, &creatorFirst, &creatorLast, &creatorEmail,
		&task.TeamName,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	task.DueDate = due
	unmarshalJSON(tags, &task.Tags)
	unmarshalJSON(comments, &task.Comments)
	unmarshalJSON(subtasks, &task.Subtasks)
	unmarshalJSON(history, &task.History)
	task.Assignee = userRef(assigneeID, assigneeFirst, assigneeLast, assigneeEmail)
	task.Creator = userRef(creatorID, creatorFirst, creatorLast, creatorEmail)

	return &task, nil
}

func userRef(id, first, last, email *string) *domain.UserRef {
	if id == nil || *id == "" {
		return nil
	}
	ref := &domain.UserRef{ID: *id}
	if first != nil {
		ref.FirstName = *first
	}
	if last != nil {
		ref.LastName = *last
	}
	if email != nil {
		ref.Email = *email
	}
	return ref
}
