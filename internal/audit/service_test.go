package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumina-lms/lumina-access/internal/shared"
)

type fakeRepo struct {
	users       map[int64]struct{}
	roles       map[int64]struct{}
	perms       map[int64]struct{}
	resources   map[int64]struct{}
	entries     []Entry
	assignments map[[2]int64]struct{}
	grants      map[[2]int64]struct{}

	userNames map[int64][2]string
	roleNames map[int64]string

	failAppend bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:       make(map[int64]struct{}),
		roles:       make(map[int64]struct{}),
		perms:       make(map[int64]struct{}),
		resources:   make(map[int64]struct{}),
		assignments: make(map[[2]int64]struct{}),
		grants:      make(map[[2]int64]struct{}),
		userNames:   make(map[int64][2]string),
		roleNames:   make(map[int64]string),
	}
}

type fakeTx struct {
	repo        *fakeRepo
	entries     []Entry
	assignments [][2]int64
	grants      [][2]int64
}

func (r *fakeRepo) Begin(ctx context.Context) (TxRepository, error) {
	return &fakeTx{repo: r}, nil
}

func (t *fakeTx) UserExists(ctx context.Context, id int64) (bool, error) {
	_, ok := t.repo.users[id]
	return ok, nil
}

func (t *fakeTx) RoleExists(ctx context.Context, id int64) (bool, error) {
	_, ok := t.repo.roles[id]
	return ok, nil
}

func (t *fakeTx) PermissionExists(ctx context.Context, id int64) (bool, error) {
	_, ok := t.repo.perms[id]
	return ok, nil
}

func (t *fakeTx) ResourceExists(ctx context.Context, id int64) (bool, error) {
	_, ok := t.repo.resources[id]
	return ok, nil
}

func (t *fakeTx) InsertRoleAssignment(ctx context.Context, userID, roleID int64) error {
	t.assignments = append(t.assignments, [2]int64{userID, roleID})
	return nil
}

func (t *fakeTx) InsertUserPermission(ctx context.Context, userID, permissionID int64) error {
	t.grants = append(t.grants, [2]int64{userID, permissionID})
	return nil
}

func (t *fakeTx) Append(ctx context.Context, entry Entry) (Entry, error) {
	if t.repo.failAppend {
		return Entry{}, errors.New("append failed")
	}
	entry.ID = int64(len(t.repo.entries) + len(t.entries) + 1)
	t.entries = append(t.entries, entry)
	return entry, nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.repo.entries = append(t.repo.entries, t.entries...)
	for _, a := range t.assignments {
		t.repo.assignments[a] = struct{}{}
	}
	for _, g := range t.grants {
		t.repo.grants[g] = struct{}{}
	}
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.entries = nil
	t.assignments = nil
	t.grants = nil
	return nil
}

func (r *fakeRepo) List(ctx context.Context, filter ListFilter, page shared.Pagination) ([]ListEntry, int, error) {
	var out []ListEntry
	for i := len(r.entries) - 1; i >= 0; i-- {
		entry := r.entries[i]
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		item := ListEntry{Entry: entry}
		if entry.ActorID != nil {
			if info, ok := r.userNames[*entry.ActorID]; ok {
				name, email := info[0], info[1]
				item.ActorName, item.ActorEmail = &name, &email
			}
		}
		if entry.TargetUserID != nil {
			if info, ok := r.userNames[*entry.TargetUserID]; ok {
				name, email := info[0], info[1]
				item.TargetName, item.TargetEmail = &name, &email
			}
		}
		if entry.RoleID != nil {
			if name, ok := r.roleNames[*entry.RoleID]; ok {
				roleName := name
				item.RoleName = &roleName
			}
		}
		out = append(out, item)
	}
	return out, len(out), nil
}

func (r *fakeRepo) Get(ctx context.Context, id int64) (Entry, error) {
	for _, entry := range r.entries {
		if entry.ID == id {
			return entry, nil
		}
	}
	return Entry{}, shared.NotFoundf("audit entry %d", id)
}

func (r *fakeRepo) ListAll(ctx context.Context) ([]Entry, error) {
	return r.entries, nil
}

func newService(repo *fakeRepo) *Service {
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestExecuteExtraGrantRecordsGrantAndEntry(t *testing.T) {
	repo := newFakeRepo()
	repo.users[1] = struct{}{}
	repo.users[2] = struct{}{}
	repo.perms[10] = struct{}{}
	svc := newService(repo)

	actor := int64(1)
	entry, err := svc.Execute(context.Background(), ExtraGrant{
		ActorID:      &actor,
		TargetUserID: 2,
		PermissionID: 10,
	})
	require.NoError(t, err)
	require.Equal(t, "assign_extra_permission", entry.Action)
	require.NotZero(t, entry.ID)
	require.Contains(t, repo.grants, [2]int64{2, 10})
	require.Len(t, repo.entries, 1)
}

func TestExecuteRollsBackGrantWhenAppendFails(t *testing.T) {
	repo := newFakeRepo()
	repo.users[2] = struct{}{}
	repo.perms[10] = struct{}{}
	repo.failAppend = true
	svc := newService(repo)

	_, err := svc.Execute(context.Background(), ExtraGrant{TargetUserID: 2, PermissionID: 10})
	require.Error(t, err)
	require.Empty(t, repo.grants)
	require.Empty(t, repo.entries)
}

func TestExtraGrantValidationOrder(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo)

	actor := int64(1)
	_, err := svc.Execute(context.Background(), ExtraGrant{ActorID: &actor, TargetUserID: 2, PermissionID: 10})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Contains(t, err.Error(), "user 2")

	repo.users[2] = struct{}{}
	_, err = svc.Execute(context.Background(), ExtraGrant{ActorID: &actor, TargetUserID: 2, PermissionID: 10})
	require.Contains(t, err.Error(), "actor 1")

	repo.users[1] = struct{}{}
	_, err = svc.Execute(context.Background(), ExtraGrant{ActorID: &actor, TargetUserID: 2, PermissionID: 10})
	require.Contains(t, err.Error(), "permission 10")
}

func TestExtraGrantUnknownScope(t *testing.T) {
	repo := newFakeRepo()
	repo.users[2] = struct{}{}
	repo.perms[10] = struct{}{}
	svc := newService(repo)

	scope := int64(5)
	_, err := svc.Execute(context.Background(), ExtraGrant{TargetUserID: 2, PermissionID: 10, ScopeID: &scope})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Contains(t, err.Error(), "resource 5")
}

func TestExecuteRoleAssignment(t *testing.T) {
	repo := newFakeRepo()
	repo.users[1] = struct{}{}
	repo.users[2] = struct{}{}
	repo.roles[3] = struct{}{}
	svc := newService(repo)

	entry, err := svc.Execute(context.Background(), RoleAssignment{ActorID: 1, TargetUserID: 2, RoleID: 3})
	require.NoError(t, err)
	require.Equal(t, "assign_role", entry.Action)
	require.Contains(t, repo.assignments, [2]int64{2, 3})
}

func TestRoleAssignmentRecordsSuppliedAction(t *testing.T) {
	repo := newFakeRepo()
	repo.users[1] = struct{}{}
	repo.users[2] = struct{}{}
	repo.roles[3] = struct{}{}
	svc := newService(repo)

	entry, err := svc.Execute(context.Background(), RoleAssignment{
		ActorID:      1,
		TargetUserID: 2,
		RoleID:       3,
		Action:       "promote_to_instructor",
	})
	require.NoError(t, err)
	require.Equal(t, "promote_to_instructor", entry.Action)
	require.Contains(t, repo.assignments, [2]int64{2, 3})
}

func TestRoleAssignmentValidatesActorFirst(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo)

	_, err := svc.Execute(context.Background(), RoleAssignment{ActorID: 1, TargetUserID: 2, RoleID: 3})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Contains(t, err.Error(), "actor 1")
}

func TestListNewestFirstWithActionFilter(t *testing.T) {
	repo := newFakeRepo()
	repo.users[1] = struct{}{}
	repo.users[2] = struct{}{}
	repo.roles[3] = struct{}{}
	repo.perms[10] = struct{}{}
	svc := newService(repo)

	_, err := svc.Execute(context.Background(), RoleAssignment{ActorID: 1, TargetUserID: 2, RoleID: 3})
	require.NoError(t, err)
	_, err = svc.Execute(context.Background(), ExtraGrant{TargetUserID: 2, PermissionID: 10})
	require.NoError(t, err)

	result, err := svc.List(context.Background(), ListFilter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	require.Equal(t, "assign_extra_permission", result.Items[0].Action)

	result, err = svc.List(context.Background(), ListFilter{Action: "assign_role"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
}

func TestListJoinsDisplayFields(t *testing.T) {
	repo := newFakeRepo()
	repo.users[1] = struct{}{}
	repo.users[2] = struct{}{}
	repo.roles[3] = struct{}{}
	repo.userNames[1] = [2]string{"Ada Admin", "ada@lumina.local"}
	repo.userNames[2] = [2]string{"Ben Learner", "ben@lumina.local"}
	repo.roleNames[3] = "instructor"
	svc := newService(repo)

	_, err := svc.Execute(context.Background(), RoleAssignment{ActorID: 1, TargetUserID: 2, RoleID: 3})
	require.NoError(t, err)

	result, err := svc.List(context.Background(), ListFilter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)

	item := result.Items[0]
	require.NotNil(t, item.ActorName)
	require.Equal(t, "Ada Admin", *item.ActorName)
	require.Equal(t, "ada@lumina.local", *item.ActorEmail)
	require.Equal(t, "Ben Learner", *item.TargetName)
	require.Equal(t, "ben@lumina.local", *item.TargetEmail)
	require.Equal(t, "instructor", *item.RoleName)
	require.Nil(t, item.PermissionName)
	require.Nil(t, item.ScopeName)
}
