package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trackline/backend/domain"
	"github.com/trackline/backend/repository"
)

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository instantiates a Postgres-backed user repository.
func NewUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `
	id, email, password_hash, first_name, last_name, role, organization_id,
	team_ids, is_active, last_login, refresh_tokens, created_at, updated_at
`

func (r *userRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user == nil {
		return nil, domain.ErrInvalidPayload
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO users (id, email, password_hash, first_name, last_name, role, organization_id, team_ids, is_active, refresh_tokens)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING created_at, updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Role,
		user.OrganizationID,
		marshalJSON(user.TeamIDs),
		user.IsActive,
		marshalJSON(user.RefreshTokens),
	).Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		if isUniqueViolation(err, "users_email") {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}

	return user, nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND is_active`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE users SET last_login = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) AddTeam(ctx context.Context, id, teamID string) error {
	// team_ids is a JSONB array of strings; append only when absent.
	const query = `
	UPDATE users
	SET team_ids = team_ids || to_jsonb($2::text),
		updated_at = NOW()
	WHERE id = $1 AND NOT team_ids ? $2
	`
	if _, err := r.pool.Exec(ctx, query, id, teamID); err != nil {
		return err
	}
	return nil
}

func (r *userRepository) AddRefreshToken(ctx context.Context, id string, token domain.RefreshToken) error {
	const query = `
	UPDATE users
	SET refresh_tokens = refresh_tokens || $2::jsonb,
		updated_at = NOW()
	WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, marshalJSON([]domain.RefreshToken{token}))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) RemoveRefreshToken(ctx context.Context, id, token string) error {
	const query = `
	UPDATE users
	SET refresh_tokens = COALESCE(
			(SELECT jsonb_agg(rt) FROM jsonb_array_elements(refresh_tokens) rt
			 WHERE rt->>'token' <> $2),
			'[]'::jsonb),
		updated_at = NOW()
	WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	var (
		teamIDs       []byte
		refreshTokens []byte
		lastLogin     *time.Time
	)

	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.OrganizationID,
		&teamIDs,
		&user.IsActive,
		&lastLogin,
		&refreshTokens,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	user.LastLogin = lastLogin
	unmarshalJSON(teamIDs, &user.TeamIDs)
	unmarshalJSON(refreshTokens, &user.RefreshTokens)
	return &user, nil
}
