// Package audit records privileged access-control changes in an append-only
// log. Entries are never updated or deleted.
package audit

import (
	"time"

	"github.com/lumina-lms/lumina-access/internal/shared"
)

// Entry is one immutable audit row. Reference fields are nullable because
// entries outlive the rows they point at.
type Entry struct {
	ID           int64          `json:"id"`
	Action       string         `json:"action"`
	ActorID      *int64         `json:"actorId,omitempty"`
	TargetUserID *int64         `json:"targetUserId,omitempty"`
	RoleID       *int64         `json:"roleId,omitempty"`
	PermissionID *int64         `json:"permissionId,omitempty"`
	ScopeID      *int64         `json:"scopeId,omitempty"`
	Meta         map[string]any `json:"meta,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// ListEntry is an Entry joined with the display fields of the rows it
// references. A joined field is nil when the entry never referenced that
// row or the row has since been deleted.
type ListEntry struct {
	Entry
	ActorName      *string `json:"actorName,omitempty"`
	ActorEmail     *string `json:"actorEmail,omitempty"`
	TargetName     *string `json:"targetName,omitempty"`
	TargetEmail    *string `json:"targetEmail,omitempty"`
	RoleName       *string `json:"roleName,omitempty"`
	PermissionName *string `json:"permissionName,omitempty"`
	ScopeName      *string `json:"scopeName,omitempty"`
}

// ListFilter narrows a log listing.
type ListFilter struct {
	Action       string
	TargetUserID int64
}

// ListResult carries one log page, newest first.
type ListResult struct {
	Items []ListEntry       `json:"items"`
	Page  shared.Pagination `json:"page"`
}
