package users

import (
	"time"

	"github.com/lumina-lms/lumina-access/internal/shared"
)

// User is a directory entry that roles and grants attach to.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RoleRef names one role assigned to a user.
type RoleRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// UserWithRoles is a directory row joined with its role assignments.
type UserWithRoles struct {
	User
	Roles []RoleRef `json:"roles"`
}

// CreateInput carries the fields for a new user. RoleID zero means no
// initial assignment.
type CreateInput struct {
	Email  string
	Name   string
	RoleID int64
}

// UpdateInput carries optional fields for a user update.
type UpdateInput struct {
	Email *string
	Name  *string
}

// IsEmpty reports whether the update carries no fields.
func (u UpdateInput) IsEmpty() bool {
	return u.Email == nil && u.Name == nil
}

// ListFilter narrows a directory listing.
type ListFilter struct {
	Search string
	RoleID int64
}

// ListResult carries one directory page.
type ListResult struct {
	Items []UserWithRoles   `json:"items"`
	Page  shared.Pagination `json:"page"`
}
