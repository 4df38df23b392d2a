package resources

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumina-lms/lumina-access/internal/shared"
)

type fakeRepo struct {
	resources map[int64]Resource
	perms     map[int64][]DefaultPermission
	nextID    int64

	failSeed bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		resources: make(map[int64]Resource),
		perms:     make(map[int64][]DefaultPermission),
	}
}

type fakeTx struct {
	repo        *fakeRepo
	staged      *Resource
	stagedPerms []DefaultPermission
}

func (r *fakeRepo) Begin(ctx context.Context) (TxRepository, error) {
	return &fakeTx{repo: r}, nil
}

func (t *fakeTx) InsertResource(ctx context.Context, input CreateInput) (Resource, error) {
	for _, existing := range t.repo.resources {
		if existing.Key == input.Key || existing.Name == input.Name {
			return Resource{}, shared.Conflictf("resource with key %q or name %q already exists", input.Key, input.Name)
		}
	}
	t.repo.nextID++
	res := Resource{ID: t.repo.nextID, Key: input.Key, Name: input.Name, Description: input.Description}
	t.staged = &res
	return res, nil
}

func (t *fakeTx) InsertDefaultPermissions(ctx context.Context, resourceID int64, defs []DefaultPermission) error {
	if t.repo.failSeed {
		return errors.New("seed failed")
	}
	t.stagedPerms = defs
	return nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.staged != nil {
		t.repo.resources[t.staged.ID] = *t.staged
		t.repo.perms[t.staged.ID] = t.stagedPerms
	}
	t.staged = nil
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.staged = nil
	t.stagedPerms = nil
	return nil
}

func (r *fakeRepo) List(ctx context.Context) ([]Resource, error) {
	out := make([]Resource, 0, len(r.resources))
	for _, res := range r.resources {
		out = append(out, res)
	}
	return out, nil
}

func (r *fakeRepo) Get(ctx context.Context, id int64) (Resource, error) {
	res, ok := r.resources[id]
	if !ok {
		return Resource{}, shared.NotFoundf("resource %d", id)
	}
	return res, nil
}

func (r *fakeRepo) Update(ctx context.Context, id int64, input UpdateInput) (Resource, error) {
	res, ok := r.resources[id]
	if !ok {
		return Resource{}, shared.NotFoundf("resource %d", id)
	}
	if input.Key != nil {
		res.Key = *input.Key
	}
	if input.Name != nil {
		res.Name = *input.Name
	}
	if input.Description != nil {
		res.Description = *input.Description
	}
	for otherID, other := range r.resources {
		if otherID != id && (other.Key == res.Key || other.Name == res.Name) {
			return Resource{}, shared.Conflictf("resource key or name already in use")
		}
	}
	r.resources[id] = res
	return res, nil
}

func (r *fakeRepo) CountPermissions(ctx context.Context, resourceID int64) (int64, error) {
	return int64(len(r.perms[resourceID])), nil
}

func (r *fakeRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.resources[id]; !ok {
		return shared.NotFoundf("resource %d", id)
	}
	delete(r.resources, id)
	return nil
}

func TestCreateProvisionsDefaultPermissions(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	res, err := svc.Create(context.Background(), CreateInput{Key: "course-content", Name: "courseContent"})
	require.NoError(t, err)
	require.Equal(t, "Course Content", res.Name)

	defs := repo.perms[res.ID]
	require.Len(t, defs, 4)
	names := make([]string, 0, 4)
	for _, def := range defs {
		names = append(names, def.Name)
	}
	require.ElementsMatch(t, []string{"create", "read", "edit", "delete"}, names)
}

func TestCreateRollsBackWhenSeedingFails(t *testing.T) {
	repo := newFakeRepo()
	repo.failSeed = true
	svc := NewService(repo, nil)

	_, err := svc.Create(context.Background(), CreateInput{Key: "course", Name: "course"})
	require.Error(t, err)
	require.Empty(t, repo.resources)
}

func TestCreateRejectsBlankFields(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)

	_, err := svc.Create(context.Background(), CreateInput{Key: "  ", Name: "course"})
	require.ErrorIs(t, err, shared.ErrBadRequest)

	_, err = svc.Create(context.Background(), CreateInput{Key: "course", Name: ""})
	require.ErrorIs(t, err, shared.ErrBadRequest)
}

func TestCreateDuplicateConflicts(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	_, err := svc.Create(context.Background(), CreateInput{Key: "course", Name: "course"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateInput{Key: "course", Name: "other"})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestUpdateRequiresFields(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)

	_, err := svc.Update(context.Background(), 1, UpdateInput{})
	require.ErrorIs(t, err, shared.ErrBadRequest)
}

func TestUpdateUnknownResource(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)

	name := "newName"
	_, err := svc.Update(context.Background(), 42, UpdateInput{Name: &name})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteRefusedWhileInUse(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	res, err := svc.Create(context.Background(), CreateInput{Key: "course", Name: "course"})
	require.NoError(t, err)

	err = svc.Delete(context.Background(), res.ID)
	require.ErrorIs(t, err, shared.ErrConflict)

	repo.perms[res.ID] = nil
	require.NoError(t, svc.Delete(context.Background(), res.ID))
	require.Empty(t, repo.resources)
}

func TestListDisplayCasesNames(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	_, err := svc.Create(context.Background(), CreateInput{Key: "user-management", Name: "userManagement"})
	require.NoError(t, err)

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "User Management", list[0].Name)
}
