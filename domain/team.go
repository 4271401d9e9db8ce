package domain

import "time"

// Team member roles.
const (
	TeamRoleLead   = "lead"
	TeamRoleMember = "member"
)

// TeamMember ties a user to a team with a role. The membership list keeps at
// most one entry per user.
type TeamMember struct {
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// Team is the unit of task visibility inside an organization.
type Team struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description,omitempty"`
	OrganizationID string       `json:"organization_id"`
	CreatedBy      string       `json:"created_by"`
	Members        []TeamMember `json:"members"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// HasMember reports whether the user belongs to the team.
func (t *Team) HasMember(userID string) bool {
	if t == nil {
		return false
	}
	for _, m := range t.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
