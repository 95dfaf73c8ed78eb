package models

import "time"

// UserRole is the closed set of membership roles consumed by the booking core.
type UserRole string

const (
	RoleAdmin        UserRole = "admin"
	RoleFull         UserRole = "full"
	RoleBasicaClases UserRole = "basica_clases"
	RoleBasica       UserRole = "basica"
)

// Entitlement describes how many classes a role may book per calendar month.
type Entitlement struct {
	Unlimited bool
	Cap       int
}

// EntitlementForRole is the single source of truth mapping roles to booking
// allowances. Unknown roles get no allowance.
func EntitlementForRole(role UserRole) Entitlement {
	switch role {
	case RoleAdmin, RoleFull:
		return Entitlement{Unlimited: true}
	case RoleBasicaClases:
		return Entitlement{Cap: 12}
	default:
		return Entitlement{}
	}
}

// CanBook reports whether the entitlement allows any booking at all.
func (e Entitlement) CanBook() bool {
	return e.Unlimited || e.Cap > 0
}

// User represents a gym member or administrator stored in the users table.
type User struct {
	ID                    string     `db:"id" json:"id"`
	Email                 string     `db:"email" json:"email"`
	PasswordHash          string     `db:"password_hash" json:"-"`
	FullName              string     `db:"full_name" json:"full_name"`
	Role                  UserRole   `db:"role" json:"role"`
	Blocked               bool       `db:"blocked" json:"blocked"`
	SubscriptionExpiresAt *time.Time `db:"subscription_expires_at" json:"subscription_expires_at,omitempty"`
	LastLogin             *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

// Actor identifies who performs a ledger operation. It is always passed
// explicitly; the core never reads the current user from ambient state.
type Actor struct {
	UserID string
	Role   UserRole
}

// IsAdmin reports whether the actor holds the administrator role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Blocked   *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
