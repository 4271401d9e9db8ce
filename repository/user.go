package repository

import (
	"context"
	"time"

	"github.com/trackline/backend/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	AddTeam(ctx context.Context, id, teamID string) error
	AddRefreshToken(ctx context.Context, id string, token domain.RefreshToken) error
	RemoveRefreshToken(ctx context.Context, id, token string) error
}
