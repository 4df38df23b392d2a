package resources

import (
	"context"
	"strings"
)

// RepositoryPort abstracts catalog persistence.
type RepositoryPort interface {
	Begin(ctx context.Context) (TxRepository, error)
	List(ctx context.Context) ([]Resource, error)
	Get(ctx context.Context, id int64) (Resource, error)
	Update(ctx context.Context, id int64, input UpdateInput) (Resource, error)
	CountPermissions(ctx context.Context, resourceID int64) (int64, error)
	Delete(ctx context.Context, id int64) error
}

// TxRepository is the transactional slice of the catalog repository.
type TxRepository interface {
	InsertResource(ctx context.Context, input CreateInput) (Resource, error)
	InsertDefaultPermissions(ctx context.Context, resourceID int64, defs []DefaultPermission) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Service implements the resource catalog operations.
type Service struct {
	repo  RepositoryPort
	cache *Cache
}

// NewService constructs the catalog service. Cache may be nil.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Create registers a resource and provisions its default permission set in
// one transaction. Either both land or neither does.
func (s *Service) Create(ctx context.Context, input CreateInput) (Resource, error) {
	input.Key = strings.TrimSpace(input.Key)
	input.Name = strings.TrimSpace(input.Name)
	if err := validateCatalogInput(input.Key, input.Name); err != nil {
		return Resource{}, err
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return Resource{}, err
	}
	defer tx.Rollback(ctx)

	res, err := tx.InsertResource(ctx, input)
	if err != nil {
		return Resource{}, err
	}
	if err := tx.InsertDefaultPermissions(ctx, res.ID, DefaultPermissionSet(input.Name)); err != nil {
		return Resource{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Resource{}, err
	}

	s.cache.Bump(ctx)
	res.Name = DisplayName(res.Name)
	return res, nil
}

// List returns the full catalog with display-cased names, served from the
// versioned cache when warm.
func (s *Service) List(ctx context.Context) ([]Resource, error) {
	var result []Resource
	err := s.cache.FetchJSON(ctx, "resources:list", &result, func(ctx context.Context) (any, error) {
		list, err := s.repo.List(ctx)
		if err != nil {
			return nil, err
		}
		for i := range list {
			list[i].Name = DisplayName(list[i].Name)
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Get returns one resource by id.
func (s *Service) Get(ctx context.Context, id int64) (Resource, error) {
	res, err := s.repo.Get(ctx, id)
	if err != nil {
		return Resource{}, err
	}
	res.Name = DisplayName(res.Name)
	return res, nil
}

// Update applies a partial update to a resource.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Resource, error) {
	if input.IsEmpty() {
		return Resource{}, errNoFields
	}
	if input.Key != nil {
		trimmed := strings.TrimSpace(*input.Key)
		if trimmed == "" {
			return Resource{}, errBlankKey
		}
		input.Key = &trimmed
	}
	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		if trimmed == "" {
			return Resource{}, errBlankName
		}
		input.Name = &trimmed
	}

	res, err := s.repo.Update(ctx, id, input)
	if err != nil {
		return Resource{}, err
	}
	s.cache.Bump(ctx)
	res.Name = DisplayName(res.Name)
	return res, nil
}

// Delete removes a resource. Refused while permissions still reference it,
// so role bindings and grants never dangle.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	count, err := s.repo.CountPermissions(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return errResourceInUse(id, count)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Bump(ctx)
	return nil
}
