package team

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackline/backend/domain"
)

type fakeTeamRepo struct {
	teams map[string]*domain.Team
}

func newFakeTeamRepo() *fakeTeamRepo {
	return &fakeTeamRepo{teams: make(map[string]*domain.Team)}
}

func (r *fakeTeamRepo) Create(_ context.Context, team *domain.Team) (*domain.Team, error) {
	cp := *team
	r.teams[team.ID] = &cp
	return team, nil
}

func (r *fakeTeamRepo) GetByID(_ context.Context, id string) (*domain.Team, error) {
	team, ok := r.teams[id]
	if !ok {
		return nil, domain.ErrTeamNotFound
	}
	return team, nil
}

func (r *fakeTeamRepo) ListForUser(_ context.Context, orgID, userID string) ([]domain.Team, error) {
	var out []domain.Team
	for _, t := range r.teams {
		if t.OrganizationID == orgID && t.HasMember(userID) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeTeamRepo) IDsForUser(ctx context.Context, orgID, userID string) ([]string, error) {
	teams, err := r.ListForUser(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(teams))
	for _, t := range teams {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

type fakeUserRepo struct {
	teamsByUser map[string][]string
	addTeamErr  error
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	return user, nil
}
func (r *fakeUserRepo) GetByID(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}
func (r *fakeUserRepo) GetByEmail(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}
func (r *fakeUserRepo) UpdateLastLogin(context.Context, string, time.Time) error { return nil }

func (r *fakeUserRepo) AddTeam(_ context.Context, id, teamID string) error {
	if r.addTeamErr != nil {
		return r.addTeamErr
	}
	if r.teamsByUser == nil {
		r.teamsByUser = make(map[string][]string)
	}
	r.teamsByUser[id] = append(r.teamsByUser[id], teamID)
	return nil
}

func (r *fakeUserRepo) AddRefreshToken(context.Context, string, domain.RefreshToken) error {
	return nil
}
func (r *fakeUserRepo) RemoveRefreshToken(context.Context, string, string) error { return nil }

var caller = domain.Identity{UserID: "user-1", OrganizationID: "org-1", FirstName: "Ada", LastName: "Lovelace"}

func TestCreateAddsCreatorAsLead(t *testing.T) {
	teams := newFakeTeamRepo()
	users := &fakeUserRepo{}
	uc := New(teams, users, nil)

	team, err := uc.Create(context.Background(), caller, "  Platform  ", " infra work ")
	require.NoError(t, err)

	assert.Equal(t, "Platform", team.Name)
	assert.Equal(t, "infra work", team.Description)
	assert.Equal(t, "org-1", team.OrganizationID)
	assert.Equal(t, "user-1", team.CreatedBy)

	require.Len(t, team.Members, 1)
	assert.Equal(t, "user-1", team.Members[0].UserID)
	assert.Equal(t, domain.TeamRoleLead, team.Members[0].Role)

	assert.Equal(t, []string{team.ID}, users.teamsByUser["user-1"])
}

func TestCreateRequiresName(t *testing.T) {
	uc := New(newFakeTeamRepo(), &fakeUserRepo{}, nil)

	_, err := uc.Create(context.Background(), caller, "   ", "")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
}

func TestCreateSurvivesUserMirrorFailure(t *testing.T) {
	teams := newFakeTeamRepo()
	users := &fakeUserRepo{addTeamErr: domain.ErrUserNotFound}
	uc := New(teams, users, nil)

	team, err := uc.Create(context.Background(), caller, "Ops", "")
	require.NoError(t, err)
	assert.NotEmpty(t, team.ID)
}

func TestListScopesToCaller(t *testing.T) {
	teams := newFakeTeamRepo()
	uc := New(teams, &fakeUserRepo{}, nil)

	_, err := uc.Create(context.Background(), caller, "Mine", "")
	require.NoError(t, err)

	teams.teams["other"] = &domain.Team{
		ID:             "other",
		Name:           "Other",
		OrganizationID: "org-1",
		Members:        []domain.TeamMember{{UserID: "someone-else"}},
	}

	listed, err := uc.List(context.Background(), caller)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Mine", listed[0].Name)
}
