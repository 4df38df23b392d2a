package audit

import (
	"context"

	"github.com/lumina-lms/lumina-access/internal/shared"
)

// Event is a privileged change that must be validated, applied, and recorded
// inside one transaction.
type Event interface {
	Validate(ctx context.Context, tx TxRepository) error
	Apply(ctx context.Context, tx TxRepository) error
	Entry() Entry
}

// DefaultRoleAssignmentAction labels role assignments whose caller did not
// choose an action string.
const DefaultRoleAssignmentAction = "assign_role"

// RoleAssignment grants a role to a user on behalf of an actor. Action is the
// caller-chosen label recorded on the entry; blank falls back to
// DefaultRoleAssignmentAction.
type RoleAssignment struct {
	ActorID      int64
	TargetUserID int64
	RoleID       int64
	Action       string
}

// Validate checks actor, target, and role in that order, so the error names
// the first missing reference.
func (e RoleAssignment) Validate(ctx context.Context, tx TxRepository) error {
	ok, err := tx.UserExists(ctx, e.ActorID)
	if err != nil {
		return err
	}
	if !ok {
		return shared.NotFoundf("actor %d", e.ActorID)
	}
	ok, err = tx.UserExists(ctx, e.TargetUserID)
	if err != nil {
		return err
	}
	if !ok {
		return shared.NotFoundf("user %d", e.TargetUserID)
	}
	ok, err = tx.RoleExists(ctx, e.RoleID)
	if err != nil {
		return err
	}
	if !ok {
		return shared.NotFoundf("role %d", e.RoleID)
	}
	return nil
}

// Apply links the role to the target. Re-assigning an existing role is a
// no-op so the log can still record the attempt.
func (e RoleAssignment) Apply(ctx context.Context, tx TxRepository) error {
	return tx.InsertRoleAssignment(ctx, e.TargetUserID, e.RoleID)
}

// Entry implements Event.
func (e RoleAssignment) Entry() Entry {
	action := e.Action
	if action == "" {
		action = DefaultRoleAssignmentAction
	}
	actor, target, role := e.ActorID, e.TargetUserID, e.RoleID
	return Entry{
		Action:       action,
		ActorID:      &actor,
		TargetUserID: &target,
		RoleID:       &role,
	}
}

// ExtraGrant grants a single permission directly to a user, outside any
// role. ActorID nil means the grant was made by the system itself.
type ExtraGrant struct {
	ActorID      *int64
	TargetUserID int64
	PermissionID int64
	ScopeID      *int64
}

// ExtraGrantAction labels direct permission grants in the log.
const ExtraGrantAction = "assign_extra_permission"

// Validate checks target, actor when present, permission, and scope when
// present, in that order.
func (e ExtraGrant) Validate(ctx context.Context, tx TxRepository) error {
	ok, err := tx.UserExists(ctx, e.TargetUserID)
	if err != nil {
		return err
	}
	if !ok {
		return shared.NotFoundf("user %d", e.TargetUserID)
	}
	if e.ActorID != nil {
		ok, err := tx.UserExists(ctx, *e.ActorID)
		if err != nil {
			return err
		}
		if !ok {
			return shared.NotFoundf("actor %d", *e.ActorID)
		}
	}
	ok, err = tx.PermissionExists(ctx, e.PermissionID)
	if err != nil {
		return err
	}
	if !ok {
		return shared.NotFoundf("permission %d", e.PermissionID)
	}
	if e.ScopeID != nil {
		ok, err := tx.ResourceExists(ctx, *e.ScopeID)
		if err != nil {
			return err
		}
		if !ok {
			return shared.NotFoundf("resource %d", *e.ScopeID)
		}
	}
	return nil
}

// Apply records the grant itself. The resolver reads the grant table, so a
// grant whose audit row failed to land never becomes effective.
func (e ExtraGrant) Apply(ctx context.Context, tx TxRepository) error {
	return tx.InsertUserPermission(ctx, e.TargetUserID, e.PermissionID)
}

// Entry implements Event.
func (e ExtraGrant) Entry() Entry {
	target, perm := e.TargetUserID, e.PermissionID
	return Entry{
		Action:       ExtraGrantAction,
		ActorID:      e.ActorID,
		TargetUserID: &target,
		PermissionID: &perm,
		ScopeID:      e.ScopeID,
	}
}
