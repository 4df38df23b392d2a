package resources

import "time"

// Resource is an object type that scopes a set of permissions (e.g. "course").
type Resource struct {
	ID          int64     `json:"id"`
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateInput carries the fields for a new resource.
type CreateInput struct {
	Key         string
	Name        string
	Description string
}

// UpdateInput carries optional fields for a resource update. Nil means "leave as is".
type UpdateInput struct {
	Key         *string
	Name        *string
	Description *string
}

// IsEmpty reports whether the update carries no fields.
func (u UpdateInput) IsEmpty() bool {
	return u.Key == nil && u.Name == nil && u.Description == nil
}

// DefaultPermission describes one permission provisioned alongside a resource.
type DefaultPermission struct {
	Name        string
	Description string
}

// DefaultPermissionSet returns the four permissions every resource is born
// with. A resource is never observable without them.
func DefaultPermissionSet(resourceName string) []DefaultPermission {
	return []DefaultPermission{
		{Name: "create", Description: "Create " + resourceName},
		{Name: "read", Description: "Read " + resourceName},
		{Name: "edit", Description: "Update " + resourceName},
		{Name: "delete", Description: "Delete " + resourceName},
	}
}
