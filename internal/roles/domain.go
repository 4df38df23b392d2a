package roles

import "time"

// Role is a named bundle of permissions.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// UpdateInput carries optional fields for a role update.
type UpdateInput struct {
	Name        *string
	Description *string
}

// IsEmpty reports whether the update carries no fields.
func (u UpdateInput) IsEmpty() bool {
	return u.Name == nil && u.Description == nil
}
