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

type teamRepository struct {
	pool *pgxpool.Pool
}

// NewTeamRepository returns a Postgres-backed TeamRepository.
func NewTeamRepository(pool *pgxpool.Pool) repository.TeamRepository {
	return &teamRepository{pool: pool}
}

func (r *teamRepository) Create(ctx context.Context, team *domain.Team) (*domain.Team, error) {
	if team == nil {
		return nil, domain.ErrInvalidPayload
	}
	if team.ID == "" {
		team.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO teams (id, name, description, organization_id, created_by, members)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING created_at, updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		team.ID,
		team.Name,
		team.Description,
		team.OrganizationID,
		team.CreatedBy,
		marshalJSON(team.Members),
	).Scan(&team.CreatedAt, &team.UpdatedAt); err != nil {
		return nil, err
	}

	return team, nil
}

func (r *teamRepository) GetByID(ctx context.Context, id string) (*domain.Team, error) {
	const query = `
	SELECT id, name, description, organization_id, created_by, members, created_at, updated_at
	FROM teams
	WHERE id = $1
	`
	return scanTeam(r.pool.QueryRow(ctx, query, id))
}

func (r *teamRepository) ListForUser(ctx context.Context, orgID, userID string) ([]domain.Team, error) {
	// Membership check runs against the JSONB members array.
	const query = `
	SELECT id, name, description, organization_id, created_by, members, created_at, updated_at
	FROM teams
	WHERE organization_id = $1
	  AND members @> $2::jsonb
	ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, orgID, memberProbe(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []domain.Team
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, *team)
	}
	return teams, rows.Err()
}

func (r *teamRepository) IDsForUser(ctx context.Context, orgID, userID string) ([]string, error) {
	const query = `
	SELECT id FROM teams
	WHERE organization_id = $1
	  AND members @> $2::jsonb
	`
	rows, err := r.pool.Query(ctx, query, orgID, memberProbe(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func memberProbe(userID string) []byte {
	return marshalJSON([]map[string]string{{"user_id": userID}})
}

func scanTeam(row pgx.Row) (*domain.Team, error) {
	var team domain.Team
	var members []byte

	if err := row.Scan(
		&team.ID,
		&team.Name,
		&team.Description,
		&team.OrganizationID,
		&team.CreatedBy,
		&members,
		&team.CreatedAt,
		&team.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTeamNotFound
		}
		return nil, err
	}

	unmarshalJSON(members, &team.Members)
	return &team, nil
}
