package domain

import "time"

// User roles within an organization.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleMember  = "member"
)

// RefreshToken is a long-lived credential stored on the user document.
// Tokens expire individually and can be revoked one at a time on logout.
type RefreshToken struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// User represents an authenticated identity in the platform. OrganizationID
// is assigned at registration and never changes afterwards.
type User struct {
	ID             string         `json:"id"`
	Email          string         `json:"email"`
	PasswordHash   string         `json:"-"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	Role           string         `json:"role"`
	OrganizationID string         `json:"organization_id"`
	TeamIDs        []string       `json:"team_ids,omitempty"`
	IsActive       bool           `json:"is_active"`
	LastLogin      *time.Time     `json:"last_login,omitempty"`
	RefreshTokens  []RefreshToken `json:"-"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// FullName joins the display name parts for notification payloads.
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// HasRefreshToken reports whether the given refresh token is still registered
// and unexpired for this user.
func (u *User) HasRefreshToken(token string, now time.Time) bool {
	if u == nil {
		return false
	}
	for _, rt := range u.RefreshTokens {
		if rt.Token == token && rt.ExpiresAt.After(now) {
			return true
		}
	}
	return false
}

// Identity is the caller context established by the auth middleware and
// carried through every scoped operation.
type Identity struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
	Role           string `json:"role"`
	Email          string `json:"email,omitempty"`
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
}

// DisplayName mirrors User.FullName for the lighter identity struct.
func (id Identity) DisplayName() string {
	switch {
	case id.FirstName == "":
		return id.LastName
	case id.LastName == "":
		return id.FirstName
	default:
		return id.FirstName + " " + id.LastName
	}
}
