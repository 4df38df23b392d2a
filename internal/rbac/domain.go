// Package rbac holds the role-permission reconciliation engine and the
// effective-permission resolver.
package rbac

// PermissionState is one requested (permission, desired) pair.
type PermissionState struct {
	PermissionID int64
	Desired      bool
}

// ReconcileInput describes the desired permission state for one role on one
// resource. Requested pairs are applied in order, so a later pair for the
// same permission wins; permissions of the resource that are absent keep
// their current binding.
type ReconcileInput struct {
	ActorID    int64
	RoleID     int64
	ResourceID int64
	Requested  []PermissionState
}

// ReconcileResult reports what a reconcile run changed and the full set of
// permission ids now bound to the role for the resource.
type ReconcileResult struct {
	RoleID      int64   `json:"roleId"`
	ResourceID  int64   `json:"resourceId"`
	EnabledIDs  []int64 `json:"enabledIds"`
	DisabledIDs []int64 `json:"disabledIds"`
	AssignedIDs []int64 `json:"assignedIds"`
}

// RolePermission is one registry row for a resource together with whether a
// particular role currently binds it. Unlike the registry's global flag,
// this one is relative to the role being asked about.
type RolePermission struct {
	PermissionID int64  `json:"permissionId"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Granted      bool   `json:"granted"`
}

// CheckResult reports whether a user holds a permission and through which
// paths. Both sources can be true at once.
type CheckResult struct {
	Allowed   bool `json:"allowed"`
	RoleBased bool `json:"roleBased"`
	Extra     bool `json:"extra"`
}

// ResolvedPermissions maps resource keys to the distinct permission names a
// user holds there, through roles or direct grants.
type ResolvedPermissions map[string][]string
