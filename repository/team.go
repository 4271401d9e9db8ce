package repository

import (
	"context"

	"github.com/trackline/backend/domain"
)

type TeamRepository interface {
	Create(ctx context.Context, team *domain.Team) (*domain.Team, error)
	GetByID(ctx context.Context, id string) (*domain.Team, error)
	// ListForUser returns every team in the organization where the user
	// appears in the membership list.
	ListForUser(ctx context.Context, orgID, userID string) ([]domain.Team, error)
	// IDsForUser is the cheap variant used to build implicit task filters.
	IDsForUser(ctx context.Context, orgID, userID string) ([]string, error)
}
