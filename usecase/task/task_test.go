package task

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackline/backend/domain"
	"github.com/trackline/backend/notify"
	"github.com/trackline/backend/repository"
	"github.com/trackline/backend/usecase/access"
)

type fakeTeamRepo struct {
	mu    sync.Mutex
	teams map[string]*domain.Team
}

func newFakeTeamRepo(teams ...*domain.Team) *fakeTeamRepo {
	r := &fakeTeamRepo{teams: make(map[string]*domain.Team)}
	for _, t := range teams {
		r.teams[t.ID] = t
	}
	return r
}

func (r *fakeTeamRepo) Create(_ context.Context, team *domain.Team) (*domain.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teams[team.ID] = team
	return team, nil
}

func (r *fakeTeamRepo) GetByID(_ context.Context, id string) (*domain.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	team, ok := r.teams[id]
	if !ok {
		return nil, domain.ErrTeamNotFound
	}
	cp := *team
	return &cp, nil
}

func (r *fakeTeamRepo) ListForUser(_ context.Context, orgID, userID string) ([]domain.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Team
	for _, t := range r.teams {
		if t.OrganizationID == orgID && t.HasMember(userID) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeTeamRepo) IDsForUser(ctx context.Context, orgID, userID string) ([]string, error) {
	teams, err := r.ListForUser(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(teams))
	for _, t := range teams {
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

type fakeTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]*domain.Task
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[string]*domain.Task)}
}

func (r *fakeTaskRepo) Create(_ context.Context, task *domain.Task) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *task
	r.tasks[task.ID] = &cp
	return task, nil
}

func (r *fakeTaskRepo) GetScoped(_ context.Context, id, orgID string) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok || task.OrganizationID != orgID {
		return nil, domain.ErrTaskNotFound
	}
	cp := *task
	return &cp, nil
}

func (r *fakeTaskRepo) List(_ context.Context, filter repository.TaskFilter) ([]domain.Task, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inScope := func(teamID string) bool {
		for _, id := range filter.TeamIDs {
			if id == teamID {
				return true
			}
		}
		return false
	}
	var out []domain.Task
	for _, t := range r.tasks {
		if t.OrganizationID != filter.OrganizationID || !inScope(t.TeamID) {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.AssignedTo != "" && t.AssignedTo != filter.AssignedTo {
			continue
		}
		if filter.Priority != "" && t.Priority != filter.Priority {
			continue
		}
		out = append(out, *t)
	}
	return out, len(out), nil
}

func (r *fakeTaskRepo) Update(_ context.Context, task *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[task.ID]; !ok {
		return domain.ErrTaskNotFound
	}
	cp := *task
	r.tasks[task.ID] = &cp
	return nil
}

func (r *fakeTaskRepo) AppendComment(_ context.Context, taskID string, comment domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	task.Comments = append(task.Comments, comment)
	return nil
}

func (r *fakeTaskRepo) AppendSubtask(_ context.Context, taskID string, subtask domain.Subtask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	task.Subtasks = append(task.Subtasks, subtask)
	return nil
}

func (r *fakeTaskRepo) ReplaceSubtasks(_ context.Context, taskID string, subtasks []domain.Subtask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	task.Subtasks = append([]domain.Subtask(nil), subtasks...)
	return nil
}

func (r *fakeTaskRepo) Delete(_ context.Context, id, orgID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok || task.OrganizationID != orgID {
		return domain.ErrTaskNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *fakeTaskRepo) CountByStatus(_ context.Context, orgID string, teamIDs []string) ([]repository.StatusCount, error) {
	counts := map[string]int{}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.OrganizationID == orgID {
			counts[t.Status]++
		}
	}
	var out []repository.StatusCount
	for status, n := range counts {
		out = append(out, repository.StatusCount{Status: status, Count: n})
	}
	return out, nil
}

func (r *fakeTaskRepo) ListAssigned(_ context.Context, orgID, userID string, limit int) ([]domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Task
	for _, t := range r.tasks {
		if t.OrganizationID == orgID && t.AssignedTo == userID && !t.IsDone() {
			out = append(out, *t)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeTaskRepo) ListRecent(_ context.Context, orgID string, teamIDs []string, limit int) ([]domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Task
	for _, t := range r.tasks {
		if t.OrganizationID == orgID {
			out = append(out, *t)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type publishedEvent struct {
	Room  string
	Event notify.Event
}

type fakeBroker struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (b *fakeBroker) Subscribe(string, string, notify.HandlerFunc) {}
func (b *fakeBroker) Unsubscribe(string, string)                  {}
func (b *fakeBroker) Close() error                                { return nil }

func (b *fakeBroker) Publish(_ context.Context, room string, event notify.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{Room: room, Event: event})
	return nil
}

func (b *fakeBroker) published() []publishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]publishedEvent(nil), b.events...)
}

func newFixture(t *testing.T) (*UseCase, *fakeTaskRepo, *fakeBroker, domain.Identity) {
	t.Helper()

	caller := domain.Identity{
		UserID:         "user-1",
		OrganizationID: "org-1",
		Role:           domain.RoleMember,
		FirstName:      "Ada",
		LastName:       "Lovelace",
	}
	team := &domain.Team{
		ID:             "team-1",
		Name:           "Core",
		OrganizationID: "org-1",
		Members: []domain.TeamMember{
			{UserID: "user-1", Role: domain.TeamRoleMember},
			{UserID: "user-2", Role: domain.TeamRoleMember},
		},
	}

	teams := newFakeTeamRepo(team)
	tasks := newFakeTaskRepo()
	broker := &fakeBroker{}
	accessSvc := access.New(teams, tasks, nil)

	return New(tasks, accessSvc, broker, nil), tasks, broker, caller
}

func TestCreateSetsDefaultsAndHistory(t *testing.T) {
	uc, _, broker, caller := newFixture(t)

	created, err := uc.Create(context.Background(), caller, CreateInput{
		Title:  "  Ship release  ",
		TeamID: "team-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "Ship release", created.Title)
	assert.Equal(t, domain.StatusTodo, created.Status)
	assert.Equal(t, domain.PriorityMedium, created.Priority)
	assert.Equal(t, "org-1", created.OrganizationID)
	assert.Equal(t, "user-1", created.CreatedBy)

	require.Len(t, created.History, 1)
	assert.Equal(t, "created", created.History[0].Action)

	events := broker.published()
	require.Len(t, events, 1)
	assert.Equal(t, notify.TeamRoom("team-1"), events[0].Room)
	assert.Equal(t, notify.EventTaskCreated, events[0].Event.Name)
}

func TestCreateIgnoresClientOrganization(t *testing.T) {
	uc, repo, _, caller := newFixture(t)

	created, err := uc.Create(context.Background(), caller, CreateInput{
		Title:  "Audit",
		TeamID: "team-1",
	})
	require.NoError(t, err)

	stored, err := repo.GetScoped(context.Background(), created.ID, caller.OrganizationID)
	require.NoError(t, err)
	assert.Equal(t, caller.OrganizationID, stored.OrganizationID)
}

func TestCreateRejectsNonMember(t *testing.T) {
	uc, _, broker, caller := newFixture(t)
	caller.UserID = "outsider"

	_, err := uc.Create(context.Background(), caller, CreateInput{Title: "x", TeamID: "team-1"})
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeForbidden))
	assert.Empty(t, broker.published())
}

func TestCreateRequiresTitleAndTeam(t *testing.T) {
	uc, _, _, caller := newFixture(t)

	_, err := uc.Create(context.Background(), caller, CreateInput{Title: "   ", TeamID: "team-1"})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	_, err = uc.Create(context.Background(), caller, CreateInput{Title: "ok"})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
}

func TestGetMasksCrossTenantAsNotFound(t *testing.T) {
	uc, repo, _, caller := newFixture(t)

	_, err := repo.Create(context.Background(), &domain.Task{
		ID:             "foreign-task",
		Title:          "secret",
		Status:         domain.StatusTodo,
		TeamID:         "team-1",
		OrganizationID: "org-2",
	})
	require.NoError(t, err)

	_, err = uc.Get(context.Background(), caller, "foreign-task")
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
}

func TestUpdateStatusRecordsSingleHistoryEntry(t *testing.T) {
	uc, _, broker, caller := newFixture(t)

	created, err := uc.Create(context.Background(), caller, CreateInput{Title: "flow", TeamID: "team-1"})
	require.NoError(t, err)

	done := domain.StatusDone
	updated, changes, err := uc.Update(context.Background(), caller, created.ID, Patch{Status: &done})
	require.NoError(t, err)

	require.Len(t, changes, 1)
	assert.Equal(t, "updated_status", changes[0].Action)
	assert.Equal(t, domain.StatusTodo, changes[0].PreviousValue)
	assert.Equal(t, domain.StatusDone, changes[0].NewValue)

	// one "created" entry plus exactly one for the status flip
	require.Len(t, updated.History, 2)
	assert.Equal(t, "updated_status", updated.History[1].Action)

	events := broker.published()
	require.Len(t, events, 2)
	assert.Equal(t, notify.EventTaskUpdated, events[1].Event.Name)
}

func TestUpdateNoopSkipsWriteAndBroadcast(t *testing.T) {
	uc, _, broker, caller := newFixture(t)

	created, err := uc.Create(context.Background(), caller, CreateInput{Title: "same", TeamID: "team-1"})
	require.NoError(t, err)

	sameTitle := created.Title
	updated, changes, err := uc.Update(context.Background(), caller, created.ID, Patch{Title: &sameTitle})
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Len(t, updated.History, 1)

	// only the task_created event, no task_updated
	assert.Len(t, broker.published(), 1)
}

func TestUpdateRejectsInvalidStatus(t *testing.T) {
	uc, _, _, caller := newFixture(t)

	created, err := uc.Create(context.Background(), caller, CreateInput{Title: "v", TeamID: "team-1"})
	require.NoError(t, err)

	bogus := "archived"
	_, _, err = uc.Update(context.Background(), caller, created.ID, Patch{Status: &bogus})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
}

func TestAddCommentTrimsAndRejectsWhitespace(t *testing.T) {
	uc, repo, broker, caller := newFixture(t)

	created, err := uc.Create(context.Background(), caller, CreateInput{Title: "talk", TeamID: "team-1"})
	require.NoError(t, err)

	_, err = uc.AddComment(context.Background(), caller, created.ID, "   \t  ")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	comment, err := uc.AddComment(context.Background(), caller, created.ID, " a ")
	require.NoError(t, err)
	assert.Equal(t, "a", comment.Message)
	assert.Equal(t, "Ada Lovelace", comment.UserName)

	stored, err := repo.GetScoped(context.Background(), created.ID, caller.OrganizationID)
	require.NoError(t, err)
	require.Len(t, stored.Comments, 1)

	events := broker.published()
	require.Len(t, events, 2)
	assert.Equal(t, notify.EventCommentAdded, events[1].Event.Name)
}

func TestAddSubtaskDefaultsPriority(t *testing.T) {
	uc, repo, _, caller := newFixture(t)

	created, err := uc.Create(context.Background(), caller, CreateInput{Title: "parent", TeamID: "team-1"})
	require.NoError(t, err)

	subtask, err := uc.AddSubtask(context.Background(), caller, created.ID, SubtaskInput{Title: "child"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTodo, subtask.Status)
	assert.Equal(t, domain.PriorityMedium, subtask.Priority)
	assert.Equal(t, caller.UserID, subtask.CreatedBy)

	stored, err := repo.GetScoped(context.Background(), created.ID, caller.OrganizationID)
	require.NoError(t, err)
	require.Len(t, stored.Subtasks, 1)
}

func TestUpdateSubtask(t *testing.T) {
	uc, repo, broker, caller := newFixture(t)

	created, err := uc.Create(context.Background(), caller, CreateInput{Title: "parent", TeamID: "team-1"})
	require.NoError(t, err)
	subtask, err := uc.AddSubtask(context.Background(), caller, created.ID, SubtaskInput{Title: "draft"})
	require.NoError(t, err)

	done := domain.StatusDone
	title := "final"
	updated, err := uc.UpdateSubtask(context.Background(), caller, created.ID, subtask.ID, SubtaskPatch{
		Title:  &title,
		Status: &done,
	})
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Title)
	assert.Equal(t, domain.StatusDone, updated.Status)
	assert.Equal(t, subtask.ID, updated.ID)

	stored, err := repo.GetScoped(context.Background(), created.ID, caller.OrganizationID)
	require.NoError(t, err)
	require.Len(t, stored.Subtasks, 1)
	assert.Equal(t, "final", stored.Subtasks[0].Title)

	events := broker.published()
	require.Len(t, events, 3)
	assert.Equal(t, notify.EventSubtaskUpdated, events[2].Event.Name)
}

func TestUpdateSubtaskUnknownID(t *testing.T) {
	uc, _, _, caller := newFixture(t)

	created, err := uc.Create(context.Background(), caller, CreateInput{Title: "parent", TeamID: "team-1"})
	require.NoError(t, err)

	bad := "archived"
	_, err = uc.UpdateSubtask(context.Background(), caller, created.ID, "ghost", SubtaskPatch{Status: &bad})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	done := domain.StatusDone
	_, err = uc.UpdateSubtask(context.Background(), caller, created.ID, "ghost", SubtaskPatch{Status: &done})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
}

func TestRemoveSubtask(t *testing.T) {
	uc, repo, broker, caller := newFixture(t)

	created, err := uc.Create(context.Background(), caller, CreateInput{Title: "parent", TeamID: "team-1"})
	require.NoError(t, err)
	first, err := uc.AddSubtask(context.Background(), caller, created.ID, SubtaskInput{Title: "keep"})
	require.NoError(t, err)
	second, err := uc.AddSubtask(context.Background(), caller, created.ID, SubtaskInput{Title: "drop"})
	require.NoError(t, err)

	require.NoError(t, uc.RemoveSubtask(context.Background(), caller, created.ID, second.ID))

	stored, err := repo.GetScoped(context.Background(), created.ID, caller.OrganizationID)
	require.NoError(t, err)
	require.Len(t, stored.Subtasks, 1)
	assert.Equal(t, first.ID, stored.Subtasks[0].ID)

	err = uc.RemoveSubtask(context.Background(), caller, created.ID, second.ID)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))

	events := broker.published()
	require.Len(t, events, 4)
	assert.Equal(t, notify.EventSubtaskDeleted, events[3].Event.Name)
}

func TestUpdateClearsDueDate(t *testing.T) {
	uc, _, _, caller := newFixture(t)

	due := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	created, err := uc.Create(context.Background(), caller, CreateInput{
		Title:   "dated",
		TeamID:  "team-1",
		DueDate: &due,
	})
	require.NoError(t, err)
	require.NotNil(t, created.DueDate)

	var zero time.Time
	updated, changes, err := uc.Update(context.Background(), caller, created.ID, Patch{DueDate: &zero})
	require.NoError(t, err)
	assert.Nil(t, updated.DueDate)

	require.Len(t, changes, 1)
	assert.Equal(t, "updated_dueDate", changes[0].Action)
	assert.Equal(t, "2026-09-15T00:00:00Z", changes[0].PreviousValue)
	assert.Equal(t, "", changes[0].NewValue)
}

func TestConcurrentUpdatesLastWriterWins(t *testing.T) {
	_, repo, _, caller := newFixture(t)

	base := &domain.Task{
		ID:             "contested",
		Title:          "contested",
		Status:         domain.StatusTodo,
		Priority:       domain.PriorityMedium,
		TeamID:         "team-1",
		OrganizationID: caller.OrganizationID,
	}
	_, err := repo.Create(context.Background(), base)
	require.NoError(t, err)

	// two writers patch different fields of the same snapshot
	first, err := repo.GetScoped(context.Background(), base.ID, caller.OrganizationID)
	require.NoError(t, err)
	second, err := repo.GetScoped(context.Background(), base.ID, caller.OrganizationID)
	require.NoError(t, err)

	done := domain.StatusDone
	Patch{Status: &done}.apply(first, caller.UserID, time.Now())
	high := domain.PriorityHigh
	Patch{Priority: &high}.apply(second, caller.UserID, time.Now())

	require.NoError(t, repo.Update(context.Background(), first))
	require.NoError(t, repo.Update(context.Background(), second))

	// the second document wins wholesale; the first writer's status
	// change is overwritten, not merged
	final, err := repo.GetScoped(context.Background(), base.ID, caller.OrganizationID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTodo, final.Status)
	assert.Equal(t, domain.PriorityHigh, final.Priority)
	require.Len(t, final.History, 1)
	assert.Equal(t, "updated_priority", final.History[0].Action)
}

func TestDeleteRemovesAndBroadcasts(t *testing.T) {
	uc, repo, broker, caller := newFixture(t)

	created, err := uc.Create(context.Background(), caller, CreateInput{Title: "gone", TeamID: "team-1"})
	require.NoError(t, err)

	require.NoError(t, uc.Delete(context.Background(), caller, created.ID))

	_, err = repo.GetScoped(context.Background(), created.ID, caller.OrganizationID)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))

	events := broker.published()
	require.Len(t, events, 2)
	assert.Equal(t, notify.EventTaskDeleted, events[1].Event.Name)
}

func TestListUsesImplicitTeamScope(t *testing.T) {
	uc, repo, _, caller := newFixture(t)

	_, err := uc.Create(context.Background(), caller, CreateInput{Title: "mine", TeamID: "team-1"})
	require.NoError(t, err)

	// same org, but a team the caller does not belong to
	_, err = repo.Create(context.Background(), &domain.Task{
		ID:             "other-team-task",
		Title:          "not mine",
		Status:         domain.StatusTodo,
		TeamID:         "team-9",
		OrganizationID: "org-1",
	})
	require.NoError(t, err)

	result, err := uc.List(context.Background(), caller, ListQuery{})
	require.NoError(t, err)
	require.Len(t, result.Tasks, 1)
	assert.Equal(t, "mine", result.Tasks[0].Title)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Page)
	assert.Equal(t, 20, result.Limit)
}

func TestListExplicitTeamRequiresMembership(t *testing.T) {
	uc, _, _, caller := newFixture(t)

	_, err := uc.List(context.Background(), caller, ListQuery{TeamID: "team-9"})
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
}

func TestPatchApplyDueDateFormat(t *testing.T) {
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	task := &domain.Task{ID: "t", Title: "x", Status: domain.StatusTodo}

	changes := Patch{DueDate: &due}.apply(task, "user-1", time.Now())
	require.Len(t, changes, 1)
	assert.Equal(t, "updated_dueDate", changes[0].Action)
	assert.Equal(t, "", changes[0].PreviousValue)
	assert.Equal(t, "2026-03-01T12:00:00Z", changes[0].NewValue)
	require.NotNil(t, task.DueDate)
	assert.True(t, task.DueDate.Equal(due))
}
