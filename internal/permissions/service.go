package permissions

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lumina-lms/lumina-access/internal/shared"
)

// RepositoryPort defines data access methods for the registry.
type RepositoryPort interface {
	ResourceExists(ctx context.Context, resourceID int64) (bool, error)
	Insert(ctx context.Context, name string, resourceID int64, description string) (Permission, error)
	List(ctx context.Context, filter ListFilter, page shared.Pagination) ([]ListItem, int, error)
	Get(ctx context.Context, id int64) (Permission, error)
	References(ctx context.Context, id int64) (bindings, grants int64, err error)
	Delete(ctx context.Context, id int64) error

	UserExists(ctx context.Context, userID int64) (bool, error)
	ExistingPermissionIDs(ctx context.Context, ids []int64) ([]int64, error)
	UserPermissionIDs(ctx context.Context, userID int64) ([]int64, error)
	InsertUserPermissions(ctx context.Context, userID int64, ids []int64) error
}

// Service handles registry business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create registers a custom permission under an existing resource.
func (s *Service) Create(ctx context.Context, name string, resourceID int64, description string) (Permission, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Permission{}, shared.BadRequestf("permission name must not be blank")
	}
	exists, err := s.repo.ResourceExists(ctx, resourceID)
	if err != nil {
		return Permission{}, err
	}
	if !exists {
		return Permission{}, shared.NotFoundf("resource %d", resourceID)
	}
	return s.repo.Insert(ctx, name, resourceID, description)
}

// List returns one registry page with resource names and role-reference flags.
func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) (ListResult, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	page := shared.NormalizePage(limit, offset)
	items, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return ListResult{}, err
	}
	if items == nil {
		items = []ListItem{}
	}
	page.Total = total
	return ListResult{Items: items, Page: page}, nil
}

// Delete removes a permission. Refused while role bindings or user grants
// still reference it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	bindings, grants, err := s.repo.References(ctx, id)
	if err != nil {
		return err
	}
	if bindings > 0 || grants > 0 {
		return shared.Conflictf("permission %d in use: %d role bindings, %d user grants", id, bindings, grants)
	}
	return s.repo.Delete(ctx, id)
}

// GrantToUser grants permissions directly to a user, skipping those already
// held. Every requested id must exist; requests that would change nothing
// are rejected so callers notice the no-op.
func (s *Service) GrantToUser(ctx context.Context, userID int64, permissionIDs []int64) (GrantResult, error) {
	if len(permissionIDs) == 0 {
		return GrantResult{}, shared.BadRequestf("no permissions requested")
	}
	ok, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return GrantResult{}, err
	}
	if !ok {
		return GrantResult{}, shared.NotFoundf("user %d", userID)
	}

	requested := dedupe(permissionIDs)
	found, err := s.repo.ExistingPermissionIDs(ctx, requested)
	if err != nil {
		return GrantResult{}, err
	}
	if missing := difference(requested, found); len(missing) > 0 {
		return GrantResult{}, shared.NotFoundf("permissions %s", joinIDs(missing))
	}

	held, err := s.repo.UserPermissionIDs(ctx, userID)
	if err != nil {
		return GrantResult{}, err
	}
	toGrant := difference(requested, held)
	if len(toGrant) == 0 {
		return GrantResult{}, shared.BadRequestf("user %d already holds all requested permissions", userID)
	}

	if err := s.repo.InsertUserPermissions(ctx, userID, toGrant); err != nil {
		return GrantResult{}, err
	}
	return GrantResult{UserID: userID, GrantedIDs: toGrant}, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func difference(ids, exclude []int64) []int64 {
	excluded := make(map[int64]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}
	var out []int64
	for _, id := range ids {
		if _, ok := excluded[id]; !ok {
			out = append(out, id)
		}
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
