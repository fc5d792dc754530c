package models

import (
	"strings"
	"time"
)

// UserRole is the closed set of account roles.
type UserRole string

const (
	RoleStudent   UserRole = "STUDENT"
	RoleProfessor UserRole = "PROFESSOR"
	RoleManager   UserRole = "MANAGER"
	RoleAdmin     UserRole = "ADMIN"
	RoleAlumni    UserRole = "ALUMNI"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// User represents an account stored in the users table. Student specific columns are zero for staff.
type User struct {
	ID                    string    `db:"id" json:"id"`
	Email                 string    `db:"email" json:"email"`
	PasswordHash          string    `db:"password_hash" json:"-"`
	FirstName             string    `db:"first_name" json:"first_name"`
	LastName              string    `db:"last_name" json:"last_name"`
	Role                  UserRole  `db:"role" json:"role"`
	Loan                  float64   `db:"loan" json:"loan"`
	GovernmentScholarship float64   `db:"government_scholarship" json:"government_scholarship"`
	DepartmentID          *string   `db:"department_id" json:"department_id,omitempty"`
	FacultyID             *string   `db:"faculty_id" json:"faculty_id,omitempty"`
	EnrollmentYear        *int      `db:"enrollment_year" json:"enrollment_year,omitempty"`
	IsActive              bool      `db:"is_active" json:"is_active"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
