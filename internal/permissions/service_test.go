package permissions

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumina-lms/lumina-access/internal/shared"
)

type fakeRepo struct {
	resources map[int64]string
	perms     map[int64]Permission
	roleRefs  map[int64]int64
	userPerms map[int64]map[int64]struct{}
	users     map[int64]struct{}
	nextID    int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		resources: make(map[int64]string),
		perms:     make(map[int64]Permission),
		roleRefs:  make(map[int64]int64),
		userPerms: make(map[int64]map[int64]struct{}),
		users:     make(map[int64]struct{}),
	}
}

func (r *fakeRepo) ResourceExists(ctx context.Context, resourceID int64) (bool, error) {
	_, ok := r.resources[resourceID]
	return ok, nil
}

func (r *fakeRepo) Insert(ctx context.Context, name string, resourceID int64, description string) (Permission, error) {
	for _, perm := range r.perms {
		if perm.Name == name && perm.ResourceID == resourceID {
			return Permission{}, shared.Conflictf("permission %q already exists for resource %d", name, resourceID)
		}
	}
	r.nextID++
	perm := Permission{ID: r.nextID, Name: name, ResourceID: resourceID, Description: description}
	r.perms[perm.ID] = perm
	return perm, nil
}

func (r *fakeRepo) List(ctx context.Context, filter ListFilter, page shared.Pagination) ([]ListItem, int, error) {
	matches := func(perm Permission) bool {
		if filter.ResourceID != 0 && perm.ResourceID != filter.ResourceID {
			return false
		}
		if filter.Search == "" {
			return true
		}
		needle := strings.ToLower(filter.Search)
		return strings.Contains(strings.ToLower(perm.Name), needle) ||
			strings.Contains(strings.ToLower(perm.Description), needle) ||
			strings.Contains(strings.ToLower(r.resources[perm.ResourceID]), needle)
	}
	var items []ListItem
	for _, perm := range r.perms {
		if !matches(perm) {
			continue
		}
		items = append(items, ListItem{
			Permission:          perm,
			ResourceName:        r.resources[perm.ResourceID],
			ReferencedByAnyRole: r.roleRefs[perm.ID] > 0,
		})
	}
	return items, len(items), nil
}

func (r *fakeRepo) Get(ctx context.Context, id int64) (Permission, error) {
	perm, ok := r.perms[id]
	if !ok {
		return Permission{}, shared.NotFoundf("permission %d", id)
	}
	return perm, nil
}

func (r *fakeRepo) References(ctx context.Context, id int64) (int64, int64, error) {
	var grants int64
	for _, held := range r.userPerms {
		if _, ok := held[id]; ok {
			grants++
		}
	}
	return r.roleRefs[id], grants, nil
}

func (r *fakeRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.perms[id]; !ok {
		return shared.NotFoundf("permission %d", id)
	}
	delete(r.perms, id)
	return nil
}

func (r *fakeRepo) UserExists(ctx context.Context, userID int64) (bool, error) {
	_, ok := r.users[userID]
	return ok, nil
}

func (r *fakeRepo) ExistingPermissionIDs(ctx context.Context, ids []int64) ([]int64, error) {
	var found []int64
	for _, id := range ids {
		if _, ok := r.perms[id]; ok {
			found = append(found, id)
		}
	}
	return found, nil
}

func (r *fakeRepo) UserPermissionIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	for id := range r.userPerms[userID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *fakeRepo) InsertUserPermissions(ctx context.Context, userID int64, ids []int64) error {
	held, ok := r.userPerms[userID]
	if !ok {
		held = make(map[int64]struct{})
		r.userPerms[userID] = held
	}
	for _, id := range ids {
		held[id] = struct{}{}
	}
	return nil
}

func TestCreatePermissionUnknownResource(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.Create(context.Background(), "publish", 99, "")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreatePermissionDuplicateConflicts(t *testing.T) {
	repo := newFakeRepo()
	repo.resources[1] = "course"
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), "publish", 1, "")
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "publish", 1, "")
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestCreatePermissionBlankName(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.Create(context.Background(), "  ", 1, "")
	require.ErrorIs(t, err, shared.ErrBadRequest)
}

func TestListMarksRoleReferencedPermissions(t *testing.T) {
	repo := newFakeRepo()
	repo.resources[1] = "course"
	svc := NewService(repo)

	bound, err := svc.Create(context.Background(), "read", 1, "")
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "edit", 1, "")
	require.NoError(t, err)
	repo.roleRefs[bound.ID] = 2

	result, err := svc.List(context.Background(), ListFilter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	for _, item := range result.Items {
		require.Equal(t, item.ID == bound.ID, item.ReferencedByAnyRole)
	}
}

func TestListFiltersByResource(t *testing.T) {
	repo := newFakeRepo()
	repo.resources[1] = "course"
	repo.resources[2] = "reports"
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), "read", 1, "")
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "read", 2, "")
	require.NoError(t, err)

	result, err := svc.List(context.Background(), ListFilter{ResourceID: 2}, 10, 0)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	require.Equal(t, int64(2), result.Items[0].ResourceID)

	all, err := svc.List(context.Background(), ListFilter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, all.Items, 2)
}

func TestListSearchMatchesDescription(t *testing.T) {
	repo := newFakeRepo()
	repo.resources[1] = "course"
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), "read", 1, "View course content")
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "edit", 1, "Modify course content")
	require.NoError(t, err)

	result, err := svc.List(context.Background(), ListFilter{Search: "modify"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	require.Equal(t, "edit", result.Items[0].Name)
}

func TestDeletePermissionRefusedWhileReferenced(t *testing.T) {
	repo := newFakeRepo()
	repo.resources[1] = "course"
	svc := NewService(repo)

	perm, err := svc.Create(context.Background(), "read", 1, "")
	require.NoError(t, err)

	repo.roleRefs[perm.ID] = 1
	err = svc.Delete(context.Background(), perm.ID)
	require.ErrorIs(t, err, shared.ErrConflict)

	repo.roleRefs[perm.ID] = 0
	require.NoError(t, svc.Delete(context.Background(), perm.ID))
}

func TestGrantToUserSkipsHeldPermissions(t *testing.T) {
	repo := newFakeRepo()
	repo.resources[1] = "course"
	repo.users[7] = struct{}{}
	svc := NewService(repo)

	read, err := svc.Create(context.Background(), "read", 1, "")
	require.NoError(t, err)
	edit, err := svc.Create(context.Background(), "edit", 1, "")
	require.NoError(t, err)

	result, err := svc.GrantToUser(context.Background(), 7, []int64{read.ID})
	require.NoError(t, err)
	require.Equal(t, []int64{read.ID}, result.GrantedIDs)

	result, err = svc.GrantToUser(context.Background(), 7, []int64{read.ID, edit.ID})
	require.NoError(t, err)
	require.Equal(t, []int64{edit.ID}, result.GrantedIDs)
}

func TestGrantToUserAllHeldIsBadRequest(t *testing.T) {
	repo := newFakeRepo()
	repo.resources[1] = "course"
	repo.users[7] = struct{}{}
	svc := NewService(repo)

	read, err := svc.Create(context.Background(), "read", 1, "")
	require.NoError(t, err)

	_, err = svc.GrantToUser(context.Background(), 7, []int64{read.ID})
	require.NoError(t, err)

	_, err = svc.GrantToUser(context.Background(), 7, []int64{read.ID})
	require.ErrorIs(t, err, shared.ErrBadRequest)
}

func TestGrantToUserNamesMissingPermissions(t *testing.T) {
	repo := newFakeRepo()
	repo.users[7] = struct{}{}
	svc := NewService(repo)

	_, err := svc.GrantToUser(context.Background(), 7, []int64{41, 42})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Contains(t, err.Error(), "41")
	require.Contains(t, err.Error(), "42")
}

func TestGrantToUserUnknownUser(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.GrantToUser(context.Background(), 404, []int64{1})
	require.ErrorIs(t, err, shared.ErrNotFound)
}
