package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
)

// User represents an application user stored in the users table. TotalPoints
// is only meaningful for students and is maintained by the aggregation path.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         UserRole  `db:"role" json:"role"`
	GroupID      *string   `db:"group_id" json:"group_id,omitempty"`
	TotalPoints  int       `db:"total_points" json:"total_points"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Actor is the authenticated identity on whose behalf an operation runs.
type Actor struct {
	UserID string
	Role   UserRole
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// IsSelf reports whether the actor is the given user.
func (a Actor) IsSelf(userID string) bool { return a.UserID != "" && a.UserID == userID }
