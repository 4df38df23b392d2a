package roles

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumina-lms/lumina-access/internal/shared"
)

type fakeRepo struct {
	roles       map[int64]Role
	bindings    map[int64]int64
	assignments map[int64]int64
	nextID      int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		roles:       make(map[int64]Role),
		bindings:    make(map[int64]int64),
		assignments: make(map[int64]int64),
	}
}

func (r *fakeRepo) Create(ctx context.Context, name, description string) (Role, error) {
	for _, existing := range r.roles {
		if strings.EqualFold(existing.Name, name) {
			return Role{}, shared.Conflictf("role %q already exists", name)
		}
	}
	r.nextID++
	role := Role{ID: r.nextID, Name: name, Description: description}
	r.roles[role.ID] = role
	return role, nil
}

func (r *fakeRepo) List(ctx context.Context) ([]Role, error) {
	out := make([]Role, 0, len(r.roles))
	for _, role := range r.roles {
		out = append(out, role)
	}
	return out, nil
}

func (r *fakeRepo) Get(ctx context.Context, id int64) (Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return Role{}, shared.NotFoundf("role %d", id)
	}
	return role, nil
}

func (r *fakeRepo) Update(ctx context.Context, id int64, input UpdateInput) (Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return Role{}, shared.NotFoundf("role %d", id)
	}
	if input.Name != nil {
		for otherID, other := range r.roles {
			if otherID != id && strings.EqualFold(other.Name, *input.Name) {
				return Role{}, shared.Conflictf("role name already in use")
			}
		}
		role.Name = *input.Name
	}
	if input.Description != nil {
		role.Description = *input.Description
	}
	r.roles[id] = role
	return role, nil
}

func (r *fakeRepo) References(ctx context.Context, id int64) (int64, int64, error) {
	return r.bindings[id], r.assignments[id], nil
}

func (r *fakeRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.roles[id]; !ok {
		return shared.NotFoundf("role %d", id)
	}
	delete(r.roles, id)
	return nil
}

func TestCreateRole(t *testing.T) {
	svc := NewService(newFakeRepo())

	role, err := svc.Create(context.Background(), "  admin  ", "full access")
	require.NoError(t, err)
	require.Equal(t, "admin", role.Name)
}

func TestCreateRoleNameCaseInsensitiveConflict(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), "Admin", "")
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "admin", "")
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestCreateRoleBlankName(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.Create(context.Background(), "   ", "")
	require.ErrorIs(t, err, shared.ErrBadRequest)
}

func TestUpdateRoleRequiresFields(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.Update(context.Background(), 1, UpdateInput{})
	require.ErrorIs(t, err, shared.ErrBadRequest)
}

func TestUpdateRoleUnknown(t *testing.T) {
	svc := NewService(newFakeRepo())

	name := "mentor"
	_, err := svc.Update(context.Background(), 9, UpdateInput{Name: &name})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteRoleRefusedWhileReferenced(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	role, err := svc.Create(context.Background(), "mentor", "")
	require.NoError(t, err)

	repo.assignments[role.ID] = 3
	err = svc.Delete(context.Background(), role.ID)
	require.ErrorIs(t, err, shared.ErrConflict)

	repo.assignments[role.ID] = 0
	require.NoError(t, svc.Delete(context.Background(), role.ID))
}

func TestDeleteRoleUnknown(t *testing.T) {
	svc := NewService(newFakeRepo())

	err := svc.Delete(context.Background(), 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
