package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleLecturer        UserRole = "LECTURER"
	RoleCoordinator     UserRole = "COORDINATOR"
	RoleAcademicManager UserRole = "ACADEMIC_MANAGER"
	RoleAdministrator   UserRole = "ADMINISTRATOR"
)

// CanActAsCoordinator reports whether the role carries coordinator
// transition rights. Administrators hold both review roles.
func (r UserRole) CanActAsCoordinator() bool {
	return r == RoleCoordinator || r == RoleAdministrator
}

// CanActAsManager reports whether the role carries manager transition rights.
func (r UserRole) CanActAsManager() bool {
	return r == RoleAcademicManager || r == RoleAdministrator
}

// IsReviewer reports whether the role may see claims it does not own.
func (r UserRole) IsReviewer() bool {
	return r.CanActAsCoordinator() || r.CanActAsManager()
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FirstName    string     `db:"first_name" json:"first_name"`
	LastName     string     `db:"last_name" json:"last_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName returns the display name used on dashboards and statements.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
