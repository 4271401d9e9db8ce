package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackline/backend/domain"
	"github.com/trackline/backend/internal/token"
)

type fakeOrgRepo struct {
	mu   sync.Mutex
	orgs map[string]*domain.Organization
}

func newFakeOrgRepo() *fakeOrgRepo {
	return &fakeOrgRepo{orgs: make(map[string]*domain.Organization)}
}

func (r *fakeOrgRepo) Create(_ context.Context, org *domain.Organization) (*domain.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.orgs {
		if existing.Domain == org.Domain {
			return nil, domain.ErrDomainTaken
		}
	}
	cp := *org
	r.orgs[org.ID] = &cp
	return org, nil
}

func (r *fakeOrgRepo) GetByID(_ context.Context, id string) (*domain.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	org, ok := r.orgs[id]
	if !ok {
		return nil, domain.ErrOrganizationNotFound
	}
	cp := *org
	return &cp, nil
}

func (r *fakeOrgRepo) GetByDomain(_ context.Context, domainName string) (*domain.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, org := range r.orgs {
		if org.Domain == domainName {
			cp := *org
			return &cp, nil
		}
	}
	return nil, domain.ErrOrganizationNotFound
}

func (r *fakeOrgRepo) SetOwner(_ context.Context, orgID, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	org, ok := r.orgs[orgID]
	if !ok {
		return domain.ErrOrganizationNotFound
	}
	org.OwnerID = ownerID
	return nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return nil, domain.ErrEmailTaken
		}
	}
	cp := *user
	r.users[user.ID] = &cp
	return user, nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *user
	cp.RefreshTokens = append([]domain.RefreshToken(nil), user.RefreshTokens...)
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == strings.ToLower(email) {
			cp := *user
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *fakeUserRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.LastLogin = &at
	return nil
}

func (r *fakeUserRepo) AddTeam(_ context.Context, id, teamID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.TeamIDs = append(user.TeamIDs, teamID)
	return nil
}

func (r *fakeUserRepo) AddRefreshToken(_ context.Context, id string, tk domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.RefreshTokens = append(user.RefreshTokens, tk)
	return nil
}

func (r *fakeUserRepo) RemoveRefreshToken(_ context.Context, id, tokenValue string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	kept := user.RefreshTokens[:0]
	for _, rt := range user.RefreshTokens {
		if rt.Token != tokenValue {
			kept = append(kept, rt)
		}
	}
	user.RefreshTokens = kept
	return nil
}

func newFixture() (*UseCase, *fakeOrgRepo, *fakeUserRepo) {
	orgs := newFakeOrgRepo()
	users := newFakeUserRepo()
	tokens := token.NewManager(token.Config{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		Issuer:        "test",
		AccessTTL:     time.Hour,
		RefreshTTL:    24 * time.Hour,
	})
	return New(orgs, users, tokens, nil), orgs, users
}

func validInput() RegisterInput {
	return RegisterInput{
		Email:              "Owner@Acme.COM",
		Password:           "secret123",
		FirstName:          "Grace",
		LastName:           "Hopper",
		OrganizationName:   "Acme",
		OrganizationDomain: "Acme.io",
	}
}

func TestRegisterCreatesOrgAndAdmin(t *testing.T) {
	uc, orgs, users := newFixture()

	result, err := uc.Register(context.Background(), validInput())
	require.NoError(t, err)

	require.NotNil(t, result.Organization)
	require.NotNil(t, result.User)
	assert.Equal(t, "acme.io", result.Organization.Domain)
	assert.Equal(t, domain.PlanFree, result.Organization.Plan)
	assert.Equal(t, result.User.ID, result.Organization.OwnerID)

	assert.Equal(t, "owner@acme.com", result.User.Email)
	assert.Equal(t, domain.RoleAdmin, result.User.Role)
	assert.Equal(t, result.Organization.ID, result.User.OrganizationID)
	assert.True(t, result.User.IsActive)

	assert.NotEmpty(t, result.Tokens.AccessToken)
	assert.NotEmpty(t, result.Tokens.RefreshToken)

	assert.Len(t, orgs.orgs, 1)
	assert.Len(t, users.users, 1)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	uc, orgs, _ := newFixture()

	_, err := uc.Register(context.Background(), validInput())
	require.NoError(t, err)

	dupe := validInput()
	dupe.OrganizationDomain = "other.io"
	_, err = uc.Register(context.Background(), dupe)
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeConflict))
	assert.Len(t, orgs.orgs, 1)
}

func TestRegisterValidation(t *testing.T) {
	uc, _, _ := newFixture()

	cases := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"bad email", func(in *RegisterInput) { in.Email = "nope" }},
		{"short password", func(in *RegisterInput) { in.Password = "abc" }},
		{"missing name", func(in *RegisterInput) { in.FirstName = " " }},
		{"missing org name", func(in *RegisterInput) { in.OrganizationName = "" }},
		{"missing org domain", func(in *RegisterInput) { in.OrganizationDomain = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := uc.Register(context.Background(), in)
			assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
		})
	}
}

func TestLoginVerifiesPassword(t *testing.T) {
	uc, _, _ := newFixture()

	_, err := uc.Register(context.Background(), validInput())
	require.NoError(t, err)

	result, err := uc.Login(context.Background(), "owner@acme.com", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Tokens.AccessToken)
	assert.NotNil(t, result.User.LastLogin)
	require.NotNil(t, result.Organization)
	assert.Equal(t, "acme.io", result.Organization.Domain)
}

func TestLoginMasksUnknownEmailAndBadPassword(t *testing.T) {
	uc, _, _ := newFixture()

	_, err := uc.Register(context.Background(), validInput())
	require.NoError(t, err)

	_, unknownErr := uc.Login(context.Background(), "ghost@acme.com", "secret123")
	_, badPassErr := uc.Login(context.Background(), "owner@acme.com", "wrong-pass")

	assert.ErrorIs(t, unknownErr, domain.ErrInvalidCredentials)
	assert.ErrorIs(t, badPassErr, domain.ErrInvalidCredentials)
}

func TestRefreshIssuesNewAccessToken(t *testing.T) {
	uc, _, _ := newFixture()

	result, err := uc.Register(context.Background(), validInput())
	require.NoError(t, err)

	pair, err := uc.Refresh(context.Background(), result.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.Empty(t, pair.RefreshToken)
}

func TestRefreshRejectsRevokedToken(t *testing.T) {
	uc, _, _ := newFixture()

	result, err := uc.Register(context.Background(), validInput())
	require.NoError(t, err)

	caller := domain.Identity{UserID: result.User.ID, OrganizationID: result.User.OrganizationID}
	require.NoError(t, uc.Logout(context.Background(), caller, result.Tokens.RefreshToken))

	_, err = uc.Refresh(context.Background(), result.Tokens.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidRefreshToken)
}

func TestRefreshRejectsGarbage(t *testing.T) {
	uc, _, _ := newFixture()

	_, err := uc.Refresh(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, domain.ErrInvalidRefreshToken)
}

func TestLogoutOnlyRevokesGivenToken(t *testing.T) {
	uc, _, users := newFixture()

	result, err := uc.Register(context.Background(), validInput())
	require.NoError(t, err)

	// second session for the same user
	second, err := uc.Login(context.Background(), "owner@acme.com", "secret123")
	require.NoError(t, err)

	caller := domain.Identity{UserID: result.User.ID}
	require.NoError(t, uc.Logout(context.Background(), caller, result.Tokens.RefreshToken))

	stored, err := users.GetByID(context.Background(), result.User.ID)
	require.NoError(t, err)
	require.Len(t, stored.RefreshTokens, 1)
	assert.Equal(t, second.Tokens.RefreshToken, stored.RefreshTokens[0].Token)

	_, err = uc.Refresh(context.Background(), second.Tokens.RefreshToken)
	assert.NoError(t, err)
}
