package permissions

import (
	"time"

	"github.com/lumina-lms/lumina-access/internal/shared"
)

// Permission is a named capability scoped to one resource. Names repeat
// across resources; (name, resource) is the unique pair.
type Permission struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ResourceID  int64     `json:"resourceId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ListItem is a registry row joined with its resource and a flag telling
// whether any role currently binds the permission.
type ListItem struct {
	Permission
	ResourceName        string `json:"resourceName"`
	ReferencedByAnyRole bool   `json:"referencedByAnyRole"`
}

// ListFilter narrows a registry listing. ResourceID zero matches every
// resource; Search matches permission name, description, or resource name.
type ListFilter struct {
	ResourceID int64
	Search     string
}

// ListResult carries one registry page.
type ListResult struct {
	Items []ListItem        `json:"items"`
	Page  shared.Pagination `json:"page"`
}

// GrantResult reports the outcome of a bulk user grant.
type GrantResult struct {
	UserID     int64   `json:"userId"`
	GrantedIDs []int64 `json:"grantedIds"`
}
