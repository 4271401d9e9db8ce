package dashboard

import (
	"context"

	"go.uber.org/zap"

	"github.com/trackline/backend/domain"
	"github.com/trackline/backend/repository"
)

// Summary is the headline counters block.
type Summary struct {
	TotalTasks    int `json:"total_tasks"`
	TotalTeams    int `json:"total_teams"`
	MyActiveTasks int `json:"my_active_tasks"`
}

// Dashboard aggregates the caller's view across all their teams.
type Dashboard struct {
	Summary        Summary        `json:"summary"`
	TasksByStatus  map[string]int `json:"tasks_by_status"`
	RecentActivity []domain.Task  `json:"recent_activity"`
	MyTasks        []domain.Task  `json:"my_tasks"`
}

type UseCase struct {
	teams  repository.TeamRepository
	tasks  repository.TaskRepository
	logger *zap.Logger
}

func New(teams repository.TeamRepository, tasks repository.TaskRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		teams:  teams,
		tasks:  tasks,
		logger: logger,
	}
}

// Get builds the dashboard for the caller. All reads are scoped to the teams
// the caller belongs to.
func (uc *UseCase) Get(ctx context.Context, caller domain.Identity) (*Dashboard, error) {
	teamIDs, err := uc.teams.IDsForUser(ctx, caller.OrganizationID, caller.UserID)
	if err != nil {
		return nil, err
	}

	counts, err := uc.tasks.CountByStatus(ctx, caller.OrganizationID, teamIDs)
	if err != nil {
		return nil, err
	}

	byStatus := map[string]int{
		domain.StatusTodo:       0,
		domain.StatusInProgress: 0,
		domain.StatusReview:     0,
		domain.StatusDone:       0,
	}
	total := 0
	for _, c := range counts {
		if _, ok := byStatus[c.Status]; ok {
			byStatus[c.Status] = c.Count
		}
		total += c.Count
	}

	recent, err := uc.tasks.ListRecent(ctx, caller.OrganizationID, teamIDs, 10)
	if err != nil {
		return nil, err
	}

	mine, err := uc.tasks.ListAssigned(ctx, caller.OrganizationID, caller.UserID, 5)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		Summary: Summary{
			TotalTasks:    total,
			TotalTeams:    len(teamIDs),
			MyActiveTasks: len(mine),
		},
		TasksByStatus:  byStatus,
		RecentActivity: recent,
		MyTasks:        mine,
	}, nil
}
