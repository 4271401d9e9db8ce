// Package access computes what a caller may see and touch. Every scoped
// operation goes through here before any mutation is attempted.
//
// Tenant mismatches are always reported as not-found, never as forbidden, so
// a caller can never probe whether an id exists in another organization. The
// tenant check runs before the membership check on every path.
package access

import (
	"context"

	"go.uber.org/zap"

	"github.com/trackline/backend/domain"
	"github.com/trackline/backend/repository"
)

type Service struct {
	teams  repository.TeamRepository
	tasks  repository.TaskRepository
	logger *zap.Logger
}

func New(teams repository.TeamRepository, tasks repository.TaskRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		teams:  teams,
		tasks:  tasks,
		logger: logger,
	}
}

// RequireTeamMember returns the team when the caller belongs to it. A team in
// another organization is indistinguishable from a missing one.
func (s *Service) RequireTeamMember(ctx context.Context, caller domain.Identity, teamID string) (*domain.Team, error) {
	team, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.OrganizationID != caller.OrganizationID {
		s.logger.Warn("cross-tenant team access masked",
			zap.String("team_id", teamID),
			zap.String("caller_org", caller.OrganizationID),
		)
		return nil, domain.ErrTeamNotFound
	}
	if !team.HasMember(caller.UserID) {
		return nil, domain.ErrNotTeamMember
	}
	return team, nil
}

// RequireTaskAccess returns the task when the caller's organization owns it
// and the caller is a member of its team. Task edit rights are membership
// based: any team member may modify any of the team's tasks, not just the
// assignee or creator.
func (s *Service) RequireTaskAccess(ctx context.Context, caller domain.Identity, taskID string) (*domain.Task, error) {
	task, err := s.tasks.GetScoped(ctx, taskID, caller.OrganizationID)
	if err != nil {
		return nil, err
	}
	team, err := s.teams.GetByID(ctx, task.TeamID)
	if err != nil {
		return nil, err
	}
	if !team.HasMember(caller.UserID) {
		return nil, domain.ErrNotTeamMember
	}
	return task, nil
}

// TeamScope returns the ids of every team the caller belongs to. Listing
// operations use it as their implicit visibility filter.
func (s *Service) TeamScope(ctx context.Context, caller domain.Identity) ([]string, error) {
	return s.teams.IDsForUser(ctx, caller.OrganizationID, caller.UserID)
}
