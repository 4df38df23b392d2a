package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/lumina-lms/lumina-access/internal/audit"
	"github.com/lumina-lms/lumina-access/internal/shared"
)

// RepositoryPort defines data access methods for the engine.
type RepositoryPort interface {
	Begin(ctx context.Context) (TxRepository, error)
	RolePermissionsByResource(ctx context.Context, roleID, resourceID int64) ([]RolePermission, error)
	UserExists(ctx context.Context, userID int64) (bool, error)
	RoleExists(ctx context.Context, roleID int64) (bool, error)
	ResourceExists(ctx context.Context, resourceID int64) (bool, error)
	EffectivePermissionNames(ctx context.Context, userID int64) ([]string, error)
	ResourcePermissionNames(ctx context.Context, userID int64, resourceKey string) ([]string, error)
	ResourcePermissionNamesByID(ctx context.Context, userID, resourceID int64) ([]string, error)
	CheckUserPermission(ctx context.Context, userID int64, permissionName, resourceKey string) (roleBased, extra bool, err error)
}

// TxRepository is the transactional slice a reconcile run uses.
type TxRepository interface {
	UserExists(ctx context.Context, id int64) (bool, error)
	RoleExists(ctx context.Context, id int64) (bool, error)
	ResourceExists(ctx context.Context, id int64) (bool, error)
	ResourcePermissionIDs(ctx context.Context, resourceID int64) ([]int64, error)
	InsertRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	DeleteRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	AssignedPermissionIDs(ctx context.Context, roleID, resourceID int64) ([]int64, error)
	AppendAudit(ctx context.Context, entry audit.Entry) (audit.Entry, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Service orchestrates reconciliation and permission checks.
type Service struct {
	repo         RepositoryPort
	logger       *slog.Logger
	resourceKeys []string
}

// NewService builds Service instance. resourceKeys lists the resource keys
// the resolver reports on.
func NewService(repo RepositoryPort, logger *slog.Logger, resourceKeys []string) *Service {
	return &Service{repo: repo, logger: logger, resourceKeys: resourceKeys}
}

// Reconcile drives the role's bindings for one resource toward the requested
// state. Pairs with Desired true are bound, false are unbound, and
// unmentioned permissions are left alone. The run and its audit entry commit
// together; running the same input again changes nothing but still logs.
func (s *Service) Reconcile(ctx context.Context, input ReconcileInput) (ReconcileResult, error) {
	if len(input.Requested) == 0 {
		return ReconcileResult{}, shared.BadRequestf("no permissions requested")
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return ReconcileResult{}, err
	}
	defer tx.Rollback(ctx)

	ok, err := tx.UserExists(ctx, input.ActorID)
	if err != nil {
		return ReconcileResult{}, err
	}
	if !ok {
		return ReconcileResult{}, shared.NotFoundf("actor %d", input.ActorID)
	}
	ok, err = tx.ResourceExists(ctx, input.ResourceID)
	if err != nil {
		return ReconcileResult{}, err
	}
	if !ok {
		return ReconcileResult{}, shared.NotFoundf("resource %d", input.ResourceID)
	}
	ok, err = tx.RoleExists(ctx, input.RoleID)
	if err != nil {
		return ReconcileResult{}, err
	}
	if !ok {
		return ReconcileResult{}, shared.NotFoundf("role %d", input.RoleID)
	}

	valid, err := tx.ResourcePermissionIDs(ctx, input.ResourceID)
	if err != nil {
		return ReconcileResult{}, err
	}
	validSet := make(map[int64]struct{}, len(valid))
	for _, id := range valid {
		validSet[id] = struct{}{}
	}
	desired := desiredStates(input.Requested)
	var invalid []int64
	for id := range desired {
		if _, ok := validSet[id]; !ok {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		sort.Slice(invalid, func(i, j int) bool { return invalid[i] < invalid[j] })
		return ReconcileResult{}, shared.BadRequestf(
			"permissions %s do not belong to resource %d", joinIDs(invalid), input.ResourceID)
	}

	var enable, disable []int64
	for id, wanted := range desired {
		if wanted {
			enable = append(enable, id)
		} else {
			disable = append(disable, id)
		}
	}
	sort.Slice(enable, func(i, j int) bool { return enable[i] < enable[j] })
	sort.Slice(disable, func(i, j int) bool { return disable[i] < disable[j] })

	if err := tx.InsertRolePermissions(ctx, input.RoleID, enable); err != nil {
		return ReconcileResult{}, err
	}
	if err := tx.DeleteRolePermissions(ctx, input.RoleID, disable); err != nil {
		return ReconcileResult{}, err
	}
	assigned, err := tx.AssignedPermissionIDs(ctx, input.RoleID, input.ResourceID)
	if err != nil {
		return ReconcileResult{}, err
	}

	actor, role, scope := input.ActorID, input.RoleID, input.ResourceID
	if _, err := tx.AppendAudit(ctx, audit.Entry{
		Action:  "assign_permissions_to_role",
		ActorID: &actor,
		RoleID:  &role,
		ScopeID: &scope,
		Meta: map[string]any{
			"permissions": requestedMeta(desired),
			"resource_id": input.ResourceID,
		},
	}); err != nil {
		return ReconcileResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ReconcileResult{}, err
	}

	s.logger.Info("role permissions reconciled",
		slog.Int64("role_id", input.RoleID),
		slog.Int64("resource_id", input.ResourceID),
		slog.Int("enabled", len(enable)),
		slog.Int("disabled", len(disable)))

	return ReconcileResult{
		RoleID:      input.RoleID,
		ResourceID:  input.ResourceID,
		EnabledIDs:  enable,
		DisabledIDs: disable,
		AssignedIDs: assigned,
	}, nil
}

// RolePermissions returns every permission of a resource with the role's
// granted flag.
func (s *Service) RolePermissions(ctx context.Context, roleID, resourceID int64) ([]RolePermission, error) {
	ok, err := s.repo.RoleExists(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, shared.NotFoundf("role %d", roleID)
	}
	list, err := s.repo.RolePermissionsByResource(ctx, roleID, resourceID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []RolePermission{}
	}
	return list, nil
}

// EffectivePermissions returns the distinct permission names a user holds
// anywhere. Used by the authorization middleware.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	return s.repo.EffectivePermissionNames(ctx, userID)
}

// Check reports whether a user holds a permission name, and through which
// paths. resourceKey narrows the check to one resource; empty matches any.
func (s *Service) Check(ctx context.Context, userID int64, permissionName, resourceKey string) (CheckResult, error) {
	permissionName = strings.TrimSpace(permissionName)
	if permissionName == "" {
		return CheckResult{}, shared.BadRequestf("permission name must not be blank")
	}
	ok, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return CheckResult{}, err
	}
	if !ok {
		return CheckResult{}, shared.NotFoundf("user %d", userID)
	}
	roleBased, extra, err := s.repo.CheckUserPermission(ctx, userID, permissionName, resourceKey)
	if err != nil {
		return CheckResult{}, err
	}
	return CheckResult{Allowed: roleBased || extra, RoleBased: roleBased, Extra: extra}, nil
}

func desiredStates(requested []PermissionState) map[int64]bool {
	out := make(map[int64]bool, len(requested))
	for _, pair := range requested {
		out[pair.PermissionID] = pair.Desired
	}
	return out
}

func requestedMeta(requested map[int64]bool) map[string]bool {
	out := make(map[string]bool, len(requested))
	for id, wanted := range requested {
		out[strconv.FormatInt(id, 10)] = wanted
	}
	return out
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ", ")
}
