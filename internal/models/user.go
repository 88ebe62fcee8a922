package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleCoordinator UserRole = "COORDINATOR"
	RoleLecturer    UserRole = "LECTURER"
	RoleStudent     UserRole = "STUDENT"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// SupervisorRole distinguishes the first and second thesis supervisor.
type SupervisorRole string

const (
	SupervisorPrimary   SupervisorRole = "supervisor_1"
	SupervisorSecondary SupervisorRole = "supervisor_2"
)

// Supervisor is one lecturer assigned to a student's thesis for the active
// semester. Assignments are owned by coordination and read-only here.
type Supervisor struct {
	LecturerID string         `db:"lecturer_id" json:"lecturer_id"`
	FullName   string         `db:"full_name" json:"full_name"`
	Role       SupervisorRole `db:"role" json:"role"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
