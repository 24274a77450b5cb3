// models/auth.go - Authorization context models
package models

// Roles recognised by the API
const (
	RoleUser      = "user"
	RoleResponder = "responder"
	RoleAdmin     = "admin"
)

// Principal is the authenticated identity an emergency coordinator acts for.
type Principal struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role"`
}

// Name falls back to a generic label so outbound messages never read "  needs help".
func (p Principal) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return "A Lifeline user"
}

func (p Principal) HasRole(roles ...string) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}
