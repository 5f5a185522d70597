package models

import (
	"strings"
	"time"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "super_admin"
	RoleAdmin      UserRole = "admin"
	RoleSubAdmin   UserRole = "sub_admin"
)

// Legacy role names still present in older rows and tokens.
const (
	legacyRoleDirector          = "director"
	legacyRoleBoardDirector     = "board_director"
	legacyRoleCommitteeDirector = "committee_director"
)

// NormalizeRole maps legacy director roles onto admin and canonicalises casing.
// Unknown values are returned lower-cased so validation can reject them.
func NormalizeRole(raw string) UserRole {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.ReplaceAll(value, "-", "_")
	switch value {
	case "superadmin":
		return RoleSuperAdmin
	case legacyRoleDirector, legacyRoleBoardDirector, legacyRoleCommitteeDirector:
		return RoleAdmin
	}
	return UserRole(value)
}

// Valid reports whether the role is one of the canonical roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleSubAdmin:
		return true
	}
	return false
}

// AdminLevel reports whether the role carries approval authority.
func (r UserRole) AdminLevel() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// User represents an application user stored in the users table.
type User struct {
	ID               string     `db:"id" json:"id"`
	Email            string     `db:"email" json:"email"`
	PasswordHash     string     `db:"password_hash" json:"-"`
	FirstName        string     `db:"first_name" json:"first_name"`
	LastName         string     `db:"last_name" json:"last_name"`
	Designation      *string    `db:"designation" json:"designation,omitempty"`
	Phone            *string    `db:"phone" json:"phone,omitempty"`
	Role             UserRole   `db:"role" json:"role"`
	UniversityBodyID *string    `db:"university_body_id" json:"university_body_id,omitempty"`
	Active           bool       `db:"is_active" json:"is_active"`
	LastLogin        *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName joins the display name fields.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role             *UserRole
	Active           *bool
	UniversityBodyID string
	Search           string
	Page             int
	PageSize         int
	SortBy           string
	SortOrder        string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// NewPagination normalises page inputs and derives the page count.
func NewPagination(page, pageSize, total int) *Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	pages := 0
	if total > 0 {
		pages = (total + pageSize - 1) / pageSize
	}
	return &Pagination{Page: page, PageSize: pageSize, TotalCount: total, TotalPages: pages}
}
