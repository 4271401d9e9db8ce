package team

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trackline/backend/domain"
	"github.com/trackline/backend/repository"
)

type UseCase struct {
	teams  repository.TeamRepository
	users  repository.UserRepository
	logger *zap.Logger
}

func New(teams repository.TeamRepository, users repository.UserRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		teams:  teams,
		users:  users,
		logger: logger,
	}
}

// List returns every team the caller is a member of within their organization.
func (uc *UseCase) List(ctx context.Context, caller domain.Identity) ([]domain.Team, error) {
	return uc.teams.ListForUser(ctx, caller.OrganizationID, caller.UserID)
}

// Create makes a new team in the caller's organization. The creator becomes
// the initial lead.
func (uc *UseCase) Create(ctx context.Context, caller domain.Identity, name, description string) (*domain.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "team name is required")
	}

	team := &domain.Team{
		ID:             uuid.NewString(),
		Name:           name,
		Description:    strings.TrimSpace(description),
		OrganizationID: caller.OrganizationID,
		CreatedBy:      caller.UserID,
		Members: []domain.TeamMember{{
			UserID:   caller.UserID,
			Role:     domain.TeamRoleLead,
			JoinedAt: time.Now(),
		}},
	}

	if _, err := uc.teams.Create(ctx, team); err != nil {
		return nil, err
	}

	// Mirror the membership onto the user document for socket room joins.
	if err := uc.users.AddTeam(ctx, caller.UserID, team.ID); err != nil {
		uc.logger.Warn("user team list update failed",
			zap.String("user_id", caller.UserID),
			zap.String("team_id", team.ID),
			zap.Error(err),
		)
	}

	return team, nil
}
