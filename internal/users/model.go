package users

import (
	"strings"
	"time"
)

// Role gates paid features and AI quota.
type Role string

const (
	RoleFree  Role = "free"
	RolePaid  Role = "paid"
	RoleAdmin Role = "admin"
)

// ParseRole validates a raw role string.
func ParseRole(raw string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(raw))); r {
	case RoleFree, RolePaid, RoleAdmin:
		return r, true
	default:
		return "", false
	}
}

type User struct {
	ID                   string    `json:"id"`
	Email                string    `json:"email"`
	FullName             string    `json:"fullName"`
	PictureURL           string    `json:"pictureUrl"`
	Role                 Role      `json:"role"`
	StripeCustomerID     string    `json:"-"`
	StripeSubscriptionID string    `json:"-"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}
