package roles

import (
	"context"
	"strings"

	"github.com/lumina-lms/lumina-access/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	Create(ctx context.Context, name, description string) (Role, error)
	List(ctx context.Context) ([]Role, error)
	Get(ctx context.Context, id int64) (Role, error)
	Update(ctx context.Context, id int64, input UpdateInput) (Role, error)
	References(ctx context.Context, id int64) (bindings, assignments int64, err error)
	Delete(ctx context.Context, id int64) error
}

// Service handles role business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create registers a new role.
func (s *Service) Create(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, shared.BadRequestf("role name must not be blank")
	}
	return s.repo.Create(ctx, name, description)
}

// List returns all roles.
func (s *Service) List(ctx context.Context) ([]Role, error) {
	return s.repo.List(ctx)
}

// Get returns one role by id.
func (s *Service) Get(ctx context.Context, id int64) (Role, error) {
	return s.repo.Get(ctx, id)
}

// Update applies a partial update to a role.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Role, error) {
	if input.IsEmpty() {
		return Role{}, shared.BadRequestf("no fields to update")
	}
	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		if trimmed == "" {
			return Role{}, shared.BadRequestf("role name must not be blank")
		}
		input.Name = &trimmed
	}
	return s.repo.Update(ctx, id, input)
}

// Delete removes a role. Refused while permission bindings or user
// assignments still reference it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	bindings, assignments, err := s.repo.References(ctx, id)
	if err != nil {
		return err
	}
	if bindings > 0 || assignments > 0 {
		return shared.Conflictf("role %d in use: %d permission bindings, %d user assignments", id, bindings, assignments)
	}
	return s.repo.Delete(ctx, id)
}
