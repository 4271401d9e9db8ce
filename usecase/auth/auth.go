package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trackline/backend/domain"
	"github.com/trackline/backend/internal/password"
	"github.com/trackline/backend/internal/token"
	"github.com/trackline/backend/repository"
)

// UseCase implements registration, login and token lifecycle. Registration
// is the only way an organization comes into existence: the tenant and its
// first admin user are created together.
type UseCase struct {
	orgs   repository.OrganizationRepository
	users  repository.UserRepository
	tokens *token.Manager
	logger *zap.Logger
}

func New(orgs repository.OrganizationRepository, users repository.UserRepository, tokens *token.Manager, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		orgs:   orgs,
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

type RegisterInput struct {
	Email              string `json:"email"`
	Password           string `json:"password"`
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`
	OrganizationName   string `json:"organization_name"`
	OrganizationDomain string `json:"organization_domain"`
}

// TokenPair is the credential set returned by register, login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Result bundles the authenticated user with the tenant and fresh tokens.
type Result struct {
	User         *domain.User         `json:"user"`
	Organization *domain.Organization `json:"organization,omitempty"`
	Tokens       TokenPair            `json:"tokens"`
}

func (in *RegisterInput) validate() error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	switch {
	case in.Email == "" || !strings.Contains(in.Email, "@"):
		return domain.NewError(domain.ErrCodeInvalid, "a valid email is required")
	case len(in.Password) < 6:
		return domain.NewError(domain.ErrCodeInvalid, "password must be at least 6 characters")
	case strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "":
		return domain.NewError(domain.ErrCodeInvalid, "first and last name are required")
	case strings.TrimSpace(in.OrganizationName) == "":
		return domain.NewError(domain.ErrCodeInvalid, "organization name is required")
	case strings.TrimSpace(in.OrganizationDomain) == "":
		return domain.NewError(domain.ErrCodeInvalid, "organization domain is required")
	}
	in.OrganizationDomain = strings.ToLower(strings.TrimSpace(in.OrganizationDomain))
	return nil
}

// Register creates the organization and its first admin user, then backfills
// the organization owner. Exactly one of each is created per valid input.
func (uc *UseCase) Register(ctx context.Context, input RegisterInput) (*Result, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	if _, err := uc.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		return nil, err
	}

	hash, err := password.Hash(input.Password)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "password hashing failed", err)
	}

	org := &domain.Organization{
		ID:       uuid.NewString(),
		Name:     strings.TrimSpace(input.OrganizationName),
		Domain:   input.OrganizationDomain,
		Plan:     domain.PlanFree,
		Settings: domain.DefaultSettings(),
		IsActive: true,
	}
	if _, err := uc.orgs.Create(ctx, org); err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:             uuid.NewString(),
		Email:          input.Email,
		PasswordHash:   hash,
		FirstName:      strings.TrimSpace(input.FirstName),
		LastName:       strings.TrimSpace(input.LastName),
		Role:           domain.RoleAdmin,
		OrganizationID: org.ID,
		IsActive:       true,
	}
	if _, err := uc.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if err := uc.orgs.SetOwner(ctx, org.ID, user.ID); err != nil {
		return nil, err
	}
	org.OwnerID = user.ID

	tokens, err := uc.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("organization registered",
		zap.String("organization_id", org.ID),
		zap.String("owner_id", user.ID),
	)

	return &Result{User: user, Organization: org, Tokens: tokens}, nil
}

// Login verifies credentials, records the login time and issues a fresh
// token pair. Unknown emails and wrong passwords are indistinguishable.
func (uc *UseCase) Login(ctx context.Context, email, pass string) (*Result, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || pass == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "email and password are required")
	}

	user, err := uc.users.GetByEmail(ctx, email)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := password.Verify(pass, user.PasswordHash)
	if err != nil || !ok {
		return nil, domain.ErrInvalidCredentials
	}

	now := time.Now()
	if err := uc.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		uc.logger.Warn("last login update failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	user.LastLogin = &now

	tokens, err := uc.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	org, err := uc.orgs.GetByID(ctx, user.OrganizationID)
	if err != nil {
		// The tenant summary is a convenience; login still succeeds.
		uc.logger.Warn("organization lookup failed", zap.String("organization_id", user.OrganizationID), zap.Error(err))
		org = nil
	}

	return &Result{User: user, Organization: org, Tokens: tokens}, nil
}

// Refresh exchanges a valid, still-registered refresh token for a new access
// token. The refresh token itself is left in place until logout or expiry.
func (uc *UseCase) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if refreshToken == "" {
		return TokenPair{}, domain.ErrInvalidRefreshToken
	}

	userID, err := uc.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, domain.ErrInvalidRefreshToken
	}

	user, err := uc.users.GetByID(ctx, userID)
	if err != nil || !user.IsActive || !user.HasRefreshToken(refreshToken, time.Now()) {
		return TokenPair{}, domain.ErrInvalidRefreshToken
	}

	access, err := uc.tokens.IssueAccess(identityOf(user))
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access}, nil
}

// Logout revokes a single refresh token. Other sessions stay valid.
func (uc *UseCase) Logout(ctx context.Context, caller domain.Identity, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return uc.users.RemoveRefreshToken(ctx, caller.UserID, refreshToken)
}

// Profile returns the caller's user record.
func (uc *UseCase) Profile(ctx context.Context, caller domain.Identity) (*domain.User, error) {
	return uc.users.GetByID(ctx, caller.UserID)
}

func (uc *UseCase) issueTokens(ctx context.Context, user *domain.User) (TokenPair, error) {
	access, err := uc.tokens.IssueAccess(identityOf(user))
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := uc.tokens.IssueRefresh(user.ID)
	if err != nil {
		return TokenPair{}, err
	}

	now := time.Now()
	if err := uc.users.AddRefreshToken(ctx, user.ID, domain.RefreshToken{
		Token:     refresh,
		CreatedAt: now,
		ExpiresAt: now.Add(uc.tokens.RefreshTTL()),
	}); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func identityOf(user *domain.User) domain.Identity {
	return domain.Identity{
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		Role:           user.Role,
		Email:          user.Email,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
	}
}
