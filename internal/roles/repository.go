package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumina-lms/lumina-access/internal/platform/db"
	"github.com/lumina-lms/lumina-access/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, name, description, created_at, updated_at`

// Create inserts a role. Name uniqueness is case-insensitive.
func (r *Repository) Create(ctx context.Context, name, description string) (Role, error) {
	query := `INSERT INTO roles (name, description) VALUES ($1, $2) RETURNING ` + roleColumns
	var role Role
	err := r.pool.QueryRow(ctx, query, name, description).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Role{}, shared.Conflictf("role %q already exists", name)
		}
		return Role{}, fmt.Errorf("roles: create: %w", err)
	}
	return role, nil
}

// List returns all roles ordered by id.
func (r *Repository) List(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// Get fetches one role by id.
func (r *Repository) Get(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.NotFoundf("role %d", id)
		}
		return Role{}, err
	}
	return role, nil
}

// Update applies the provided fields to a role.
func (r *Repository) Update(ctx context.Context, id int64, input UpdateInput) (Role, error) {
	set := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if input.Name != nil {
		args = append(args, *input.Name)
		set = append(set, fmt.Sprintf("name = $%d", len(args)))
	}
	if input.Description != nil {
		args = append(args, *input.Description)
		set = append(set, fmt.Sprintf("description = $%d", len(args)))
	}
	set = append(set, "updated_at = now()")
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE roles SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(set, ", "), len(args), roleColumns)

	var role Role
	err := r.pool.QueryRow(ctx, query, args...).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.NotFoundf("role %d", id)
		}
		if db.IsUniqueViolation(err) {
			return Role{}, shared.Conflictf("role name already in use")
		}
		return Role{}, err
	}
	return role, nil
}

// References reports how many role-permission bindings and user assignments
// still point at the role.
func (r *Repository) References(ctx context.Context, id int64) (bindings, assignments int64, err error) {
	const query = `SELECT
	                 (SELECT count(*) FROM role_permissions WHERE role_id = $1),
	                 (SELECT count(*) FROM user_role_assignments WHERE role_id = $1)`
	if err := r.pool.QueryRow(ctx, query, id).Scan(&bindings, &assignments); err != nil {
		return 0, 0, err
	}
	return bindings, assignments, nil
}

// Delete removes a role by id.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return shared.Conflictf("role %d in use", id)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("role %d", id)
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
