package transport

import "time"

type RegisterRequest struct {
	Email              string `json:"email"`
	Password           string `json:"password"`
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`
	OrganizationName   string `json:"organization_name"`
	OrganizationDomain string `json:"organization_domain"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type CreateTeamRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type CreateTaskRequest struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Priority       string   `json:"priority"`
	AssignedTo     string   `json:"assigned_to"`
	TeamID         string   `json:"team_id"`
	DueDate        string   `json:"due_date"`
	EstimatedHours float64  `json:"estimated_hours"`
	Tags           []string `json:"tags"`
}

// UpdateTaskRequest mirrors the typed patch: only allow-listed fields exist,
// and absent fields stay nil.
type UpdateTaskRequest struct {
	Title          *string   `json:"title"`
	Description    *string   `json:"description"`
	Status         *string   `json:"status"`
	Priority       *string   `json:"priority"`
	AssignedTo     *string   `json:"assigned_to"`
	DueDate        *string   `json:"due_date"`
	EstimatedHours *float64  `json:"estimated_hours"`
	ActualHours    *float64  `json:"actual_hours"`
	Tags           *[]string `json:"tags"`
}

type AddCommentRequest struct {
	Message string `json:"message"`
}

type AddSubtaskRequest struct {
	Title      string `json:"title"`
	Priority   string `json:"priority"`
	AssignedTo string `json:"assigned_to"`
	DueDate    string `json:"due_date"`
}

type UpdateSubtaskRequest struct {
	Title      *string `json:"title"`
	Status     *string `json:"status"`
	Priority   *string `json:"priority"`
	AssignedTo *string `json:"assigned_to"`
	DueDate    *string `json:"due_date"`
}

// ParseDueDate interprets an RFC3339 due date string, returning nil for an
// empty or malformed value.
func ParseDueDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &parsed
}

// ParseDueDatePatch interprets a due date supplied in an update payload. An
// empty string clears the date and comes back as a zero time; anything else
// must be RFC3339. The bool reports whether the value was usable.
func ParseDueDatePatch(value string) (*time.Time, bool) {
	if value == "" {
		var zero time.Time
		return &zero, true
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, false
	}
	return &parsed, true
}
