package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trackline/backend/domain"
	"github.com/trackline/backend/repository"
)

type organizationRepository struct {
	pool *pgxpool.Pool
}

// NewOrganizationRepository returns a Postgres-backed OrganizationRepository.
func NewOrganizationRepository(pool *pgxpool.Pool) repository.OrganizationRepository {
	return &organizationRepository{pool: pool}
}

func (r *organizationRepository) Create(ctx context.Context, org *domain.Organization) (*domain.Organization, error) {
	if org == nil {
		return nil, domain.ErrInvalidPayload
	}
	if org.ID == "" {
		org.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO organizations (id, name, domain, plan, owner_id, settings, is_active)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING created_at, updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		org.ID,
		org.Name,
		org.Domain,
		org.Plan,
		org.OwnerID,
		marshalJSON(org.Settings),
		org.IsActive,
	).Scan(&org.CreatedAt, &org.UpdatedAt); err != nil {
		if isUniqueViolation(err, "organizations_domain") {
			return nil, domain.ErrDomainTaken
		}
		return nil, err
	}

	return org, nil
}

func (r *organizationRepository) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	const query = `
	SELECT id, name, domain, plan, owner_id, settings, is_active, created_at, updated_at
	FROM organizations
	WHERE id = $1
	`
	return scanOrganization(r.pool.QueryRow(ctx, query, id))
}

func (r *organizationRepository) GetByDomain(ctx context.Context, domainName string) (*domain.Organization, error) {
	const query = `
	SELECT id, name, domain, plan, owner_id, settings, is_active, created_at, updated_at
	FROM organizations
	WHERE domain = $1
	`
	return scanOrganization(r.pool.QueryRow(ctx, query, domainName))
}

func (r *organizationRepository) SetOwner(ctx context.Context, orgID, ownerID string) error {
	const query = `
	UPDATE organizations
	SET owner_id = $2,
		updated_at = NOW()
	WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, orgID, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrganizationNotFound
	}
	return nil
}

func scanOrganization(row pgx.Row) (*domain.Organization, error) {
	var org domain.Organization
	var settings []byte

	if err := row.Scan(
		&org.ID,
		&org.Name,
		&org.Domain,
		&org.Plan,
		&org.OwnerID,
		&settings,
		&org.IsActive,
		&org.CreatedAt,
		&org.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrganizationNotFound
		}
		return nil, err
	}

	unmarshalJSON(settings, &org.Settings)
	return &org, nil
}
