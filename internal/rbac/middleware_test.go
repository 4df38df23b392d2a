package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumina-lms/lumina-access/internal/shared"
)

func middlewareFixture() (*fakeRepo, Middleware) {
	repo := newFakeRepo()
	repo.users[7] = struct{}{}
	repo.roles[5] = struct{}{}
	repo.resources[2] = "course"
	repo.perms = []permRow{
		{id: 10, name: "read", resourceID: 2},
		{id: 11, name: "edit", resourceID: 2},
	}
	repo.bindings[5] = map[int64]struct{}{10: {}}
	repo.assignments[7] = map[int64]struct{}{5: {}}

	svc := NewService(repo, testLogger(), nil)
	return repo, Middleware{Service: svc, Logger: testLogger()}
}

func serve(mw func(http.Handler) http.Handler, actorID int64) *httptest.ResponseRecorder {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if actorID != 0 {
		req = req.WithContext(shared.ContextWithActor(req.Context(), actorID))
	}
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)
	return rec
}

func TestRequireAnyAllowsGrantedPermission(t *testing.T) {
	_, mw := middlewareFixture()

	rec := serve(mw.RequireAny("read", "edit"), 7)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequireAnyRejectsMissingPermission(t *testing.T) {
	_, mw := middlewareFixture()

	rec := serve(mw.RequireAny("edit"), 7)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAllNeedsEveryPermission(t *testing.T) {
	repo, mw := middlewareFixture()

	rec := serve(mw.RequireAll("read", "edit"), 7)
	require.Equal(t, http.StatusForbidden, rec.Code)

	repo.grants[7] = map[int64]struct{}{11: {}}
	rec = serve(mw.RequireAll("read", "edit"), 7)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMiddlewareRejectsAnonymousRequests(t *testing.T) {
	_, mw := middlewareFixture()

	rec := serve(mw.RequireAny("read"), 0)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMiddlewareWithNoRequirementsPassesThrough(t *testing.T) {
	_, mw := middlewareFixture()

	rec := serve(mw.RequireAny(), 0)
	require.Equal(t, http.StatusNoContent, rec.Code)
}
