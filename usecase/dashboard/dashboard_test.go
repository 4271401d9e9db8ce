package dashboard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackline/backend/domain"
	"github.com/trackline/backend/repository"
)

type fakeTeamRepo struct {
	ids []string
}

func (r *fakeTeamRepo) Create(_ context.Context, team *domain.Team) (*domain.Team, error) {
	return team, nil
}
func (r *fakeTeamRepo) GetByID(context.Context, string) (*domain.Team, error) {
	return nil, domain.ErrTeamNotFound
}
func (r *fakeTeamRepo) ListForUser(context.Context, string, string) ([]domain.Team, error) {
	return nil, nil
}
func (r *fakeTeamRepo) IDsForUser(context.Context, string, string) ([]string, error) {
	return r.ids, nil
}

type fakeTaskRepo struct {
	counts   []repository.StatusCount
	recent   []domain.Task
	assigned []domain.Task

	recentLimit   int
	assignedLimit int
}

func (r *fakeTaskRepo) Create(_ context.Context, task *domain.Task) (*domain.Task, error) {
	return task, nil
}
func (r *fakeTaskRepo) GetScoped(context.Context, string, string) (*domain.Task, error) {
	return nil, domain.ErrTaskNotFound
}
func (r *fakeTaskRepo) List(context.Context, repository.TaskFilter) ([]domain.Task, int, error) {
	return nil, 0, nil
}
func (r *fakeTaskRepo) Update(context.Context, *domain.Task) error { return nil }
func (r *fakeTaskRepo) AppendComment(context.Context, string, domain.Comment) error {
	return nil
}
func (r *fakeTaskRepo) AppendSubtask(context.Context, string, domain.Subtask) error {
	return nil
}
func (r *fakeTaskRepo) ReplaceSubtasks(context.Context, string, []domain.Subtask) error {
	return nil
}
func (r *fakeTaskRepo) Delete(context.Context, string, string) error { return nil }

func (r *fakeTaskRepo) CountByStatus(context.Context, string, []string) ([]repository.StatusCount, error) {
	return r.counts, nil
}

func (r *fakeTaskRepo) ListAssigned(_ context.Context, _, _ string, limit int) ([]domain.Task, error) {
	r.assignedLimit = limit
	return r.assigned, nil
}

func (r *fakeTaskRepo) ListRecent(_ context.Context, _ string, _ []string, limit int) ([]domain.Task, error) {
	r.recentLimit = limit
	return r.recent, nil
}

func TestGetAggregates(t *testing.T) {
	teams := &fakeTeamRepo{ids: []string{"team-1", "team-2"}}
	tasks := &fakeTaskRepo{
		counts: []repository.StatusCount{
			{Status: domain.StatusTodo, Count: 3},
			{Status: domain.StatusDone, Count: 2},
		},
		recent:   []domain.Task{{ID: "r1"}, {ID: "r2"}},
		assigned: []domain.Task{{ID: "a1"}},
	}
	uc := New(teams, tasks, nil)

	caller := domain.Identity{UserID: "user-1", OrganizationID: "org-1"}
	dash, err := uc.Get(context.Background(), caller)
	require.NoError(t, err)

	assert.Equal(t, 5, dash.Summary.TotalTasks)
	assert.Equal(t, 2, dash.Summary.TotalTeams)
	assert.Equal(t, 1, dash.Summary.MyActiveTasks)

	assert.Equal(t, 3, dash.TasksByStatus[domain.StatusTodo])
	assert.Equal(t, 2, dash.TasksByStatus[domain.StatusDone])
	assert.Len(t, dash.RecentActivity, 2)
	assert.Len(t, dash.MyTasks, 1)

	assert.Equal(t, 10, tasks.recentLimit)
	assert.Equal(t, 5, tasks.assignedLimit)
}

func TestGetZeroFillsEveryStatus(t *testing.T) {
	uc := New(&fakeTeamRepo{}, &fakeTaskRepo{}, nil)

	dash, err := uc.Get(context.Background(), domain.Identity{UserID: "u", OrganizationID: "o"})
	require.NoError(t, err)

	// every status bucket is present even with no tasks at all
	require.Len(t, dash.TasksByStatus, 4)
	for _, status := range []string{domain.StatusTodo, domain.StatusInProgress, domain.StatusReview, domain.StatusDone} {
		count, ok := dash.TasksByStatus[status]
		assert.True(t, ok, status)
		assert.Zero(t, count)
	}
	assert.Zero(t, dash.Summary.TotalTasks)
}
