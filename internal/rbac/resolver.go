package rbac

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/lumina-lms/lumina-access/internal/shared"
)

// PermissionsForResource returns the distinct permission names a user holds
// on one resource id, through roles or direct grants. Unlike Resolve, the
// resource does not have to be in the configured key set.
func (s *Service) PermissionsForResource(ctx context.Context, userID, resourceID int64) ([]string, error) {
	ok, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, shared.NotFoundf("user %d", userID)
	}
	ok, err = s.repo.ResourceExists(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, shared.NotFoundf("resource %d", resourceID)
	}
	names, err := s.repo.ResourcePermissionNamesByID(ctx, userID, resourceID)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Resolve computes the user's effective permissions per configured resource
// key. Each key is queried concurrently; the first failure cancels the rest.
func (s *Service) Resolve(ctx context.Context, userID int64) (ResolvedPermissions, error) {
	ok, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, shared.NotFoundf("user %d", userID)
	}

	results := make([][]string, len(s.resourceKeys))
	g, ctx := errgroup.WithContext(ctx)
	for i, key := range s.resourceKeys {
		i, key := i, key
		g.Go(func() error {
			names, err := s.repo.ResourcePermissionNames(ctx, userID, key)
			if err != nil {
				return err
			}
			results[i] = names
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resolved := make(ResolvedPermissions, len(s.resourceKeys))
	for i, key := range s.resourceKeys {
		if results[i] == nil {
			results[i] = []string{}
		}
		resolved[key] = results[i]
	}
	return resolved, nil
}
