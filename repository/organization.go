package repository

import (
	"context"

	"github.com/trackline/backend/domain"
)

type OrganizationRepository interface {
	Create(ctx context.Context, org *domain.Organization) (*domain.Organization, error)
	GetByID(ctx context.Context, id string) (*domain.Organization, error)
	GetByDomain(ctx context.Context, domainName string) (*domain.Organization, error)
	SetOwner(ctx context.Context, orgID, ownerID string) error
}
