package users

import (
	"context"
	"strings"

	"github.com/lumina-lms/lumina-access/internal/shared"
)

// RepositoryPort defines data access methods for the directory.
type RepositoryPort interface {
	Begin(ctx context.Context) (TxRepository, error)
	List(ctx context.Context, filter ListFilter, page shared.Pagination) ([]UserWithRoles, int, error)
	Get(ctx context.Context, id int64) (UserWithRoles, error)
	Update(ctx context.Context, id int64, input UpdateInput) (User, error)
	UserExists(ctx context.Context, userID int64) (bool, error)
	RoleExists(ctx context.Context, roleID int64) (bool, error)
	AssignRole(ctx context.Context, userID, roleID int64) (bool, error)
}

// TxRepository is the transactional slice of the directory repository.
type TxRepository interface {
	InsertUser(ctx context.Context, email, name string) (User, error)
	RoleExists(ctx context.Context, roleID int64) (bool, error)
	InsertAssignment(ctx context.Context, userID, roleID int64) error
	DeleteUserCascade(ctx context.Context, userID int64) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Service handles directory business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create registers a user and, when RoleID is set, assigns the initial role
// in the same transaction.
func (s *Service) Create(ctx context.Context, input CreateInput) (User, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	input.Name = strings.TrimSpace(input.Name)
	if input.Email == "" {
		return User{}, shared.BadRequestf("email must not be blank")
	}
	if input.Name == "" {
		return User{}, shared.BadRequestf("name must not be blank")
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return User{}, err
	}
	defer tx.Rollback(ctx)

	if input.RoleID != 0 {
		ok, err := tx.RoleExists(ctx, input.RoleID)
		if err != nil {
			return User{}, err
		}
		if !ok {
			return User{}, shared.NotFoundf("role %d", input.RoleID)
		}
	}

	user, err := tx.InsertUser(ctx, input.Email, input.Name)
	if err != nil {
		return User{}, err
	}
	if input.RoleID != 0 {
		if err := tx.InsertAssignment(ctx, user.ID, input.RoleID); err != nil {
			return User{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return User{}, err
	}
	return user, nil
}

// List returns one directory page.
func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) (ListResult, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	page := shared.NormalizePage(limit, offset)
	items, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return ListResult{}, err
	}
	if items == nil {
		items = []UserWithRoles{}
	}
	page.Total = total
	return ListResult{Items: items, Page: page}, nil
}

// Get returns one user with role assignments.
func (s *Service) Get(ctx context.Context, id int64) (UserWithRoles, error) {
	return s.repo.Get(ctx, id)
}

// Update applies a partial update to a user.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (User, error) {
	if input.IsEmpty() {
		return User{}, shared.BadRequestf("no fields to update")
	}
	if input.Email != nil {
		trimmed := strings.TrimSpace(strings.ToLower(*input.Email))
		if trimmed == "" {
			return User{}, shared.BadRequestf("email must not be blank")
		}
		input.Email = &trimmed
	}
	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		if trimmed == "" {
			return User{}, shared.BadRequestf("name must not be blank")
		}
		input.Name = &trimmed
	}
	return s.repo.Update(ctx, id, input)
}

// Delete removes a user along with role assignments and direct grants.
func (s *Service) Delete(ctx context.Context, id int64) error {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := tx.DeleteUserCascade(ctx, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// AssignRole links a user to a role. Assigning an already held role is a
// no-op, not an error.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64) error {
	ok, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return shared.NotFoundf("user %d", userID)
	}
	ok, err = s.repo.RoleExists(ctx, roleID)
	if err != nil {
		return err
	}
	if !ok {
		return shared.NotFoundf("role %d", roleID)
	}
	_, err = s.repo.AssignRole(ctx, userID, roleID)
	return err
}
