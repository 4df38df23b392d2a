package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumina-lms/lumina-access/internal/shared"
)

func TestResolveGroupsPermissionsByResourceKey(t *testing.T) {
	repo := newFakeRepo()
	repo.users[7] = struct{}{}
	repo.roles[5] = struct{}{}
	repo.resources[2] = "course"
	repo.resources[3] = "reports"
	repo.perms = []permRow{
		{id: 10, name: "read", resourceID: 2},
		{id: 11, name: "edit", resourceID: 2},
		{id: 20, name: "read", resourceID: 3},
	}
	repo.bindings[5] = map[int64]struct{}{10: {}}
	repo.assignments[7] = map[int64]struct{}{5: {}}
	repo.grants[7] = map[int64]struct{}{11: {}, 20: {}}

	svc := NewService(repo, testLogger(), []string{"course", "reports", "users"})

	resolved, err := svc.Resolve(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, resolved, 3)
	require.Equal(t, []string{"edit", "read"}, resolved["course"])
	require.Equal(t, []string{"read"}, resolved["reports"])
	require.Empty(t, resolved["users"])
}

func TestResolveDeduplicatesRoleAndGrantOverlap(t *testing.T) {
	repo := newFakeRepo()
	repo.users[7] = struct{}{}
	repo.roles[5] = struct{}{}
	repo.resources[2] = "course"
	repo.perms = []permRow{{id: 10, name: "read", resourceID: 2}}
	repo.bindings[5] = map[int64]struct{}{10: {}}
	repo.assignments[7] = map[int64]struct{}{5: {}}
	repo.grants[7] = map[int64]struct{}{10: {}}

	svc := NewService(repo, testLogger(), []string{"course"})

	resolved, err := svc.Resolve(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, []string{"read"}, resolved["course"])
}

func TestResolveUnknownUser(t *testing.T) {
	svc := NewService(newFakeRepo(), testLogger(), []string{"course"})

	_, err := svc.Resolve(context.Background(), 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPermissionsForResourceUnionsRolesAndGrants(t *testing.T) {
	repo := newFakeRepo()
	repo.users[7] = struct{}{}
	repo.roles[5] = struct{}{}
	repo.resources[2] = "course"
	repo.resources[3] = "reports"
	repo.perms = []permRow{
		{id: 10, name: "read", resourceID: 2},
		{id: 11, name: "edit", resourceID: 2},
		{id: 20, name: "read", resourceID: 3},
	}
	repo.bindings[5] = map[int64]struct{}{10: {}}
	repo.assignments[7] = map[int64]struct{}{5: {}}
	repo.grants[7] = map[int64]struct{}{10: {}, 11: {}, 20: {}}

	svc := NewService(repo, testLogger(), []string{"course"})

	names, err := svc.PermissionsForResource(context.Background(), 7, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"edit", "read"}, names)
}

func TestPermissionsForResourceOutsideConfiguredKeys(t *testing.T) {
	repo := newFakeRepo()
	repo.users[7] = struct{}{}
	repo.resources[9] = "billing"
	repo.perms = []permRow{{id: 30, name: "read", resourceID: 9}}
	repo.grants[7] = map[int64]struct{}{30: {}}

	svc := NewService(repo, testLogger(), []string{"course"})

	names, err := svc.PermissionsForResource(context.Background(), 7, 9)
	require.NoError(t, err)
	require.Equal(t, []string{"read"}, names)
}

func TestPermissionsForResourceUnknownTargets(t *testing.T) {
	repo := newFakeRepo()
	repo.users[7] = struct{}{}
	repo.resources[2] = "course"
	svc := NewService(repo, testLogger(), []string{"course"})

	_, err := svc.PermissionsForResource(context.Background(), 404, 2)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Contains(t, err.Error(), "user 404")

	_, err = svc.PermissionsForResource(context.Background(), 7, 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Contains(t, err.Error(), "resource 404")

	names, err := svc.PermissionsForResource(context.Background(), 7, 2)
	require.NoError(t, err)
	require.Empty(t, names)
	require.NotNil(t, names)
}
