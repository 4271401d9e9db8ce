package domain

import "time"

// Plan tiers available to an organization.
const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// OrgSettings holds per-tenant limits and feature toggles.
type OrgSettings struct {
	MaxTeams int      `json:"max_teams"`
	MaxUsers int      `json:"max_users"`
	Features []string `json:"features,omitempty"`
}

// Organization is the tenant isolation boundary: every user, team and task
// belongs to exactly one organization.
type Organization struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Domain    string      `json:"domain"`
	Plan      string      `json:"plan"`
	OwnerID   string      `json:"owner_id"`
	Settings  OrgSettings `json:"settings"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// DefaultSettings returns the limits applied to a newly registered tenant.
func DefaultSettings() OrgSettings {
	return OrgSettings{
		MaxTeams: 5,
		MaxUsers: 50,
	}
}
