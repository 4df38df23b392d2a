package permissions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumina-lms/lumina-access/internal/platform/db"
	"github.com/lumina-lms/lumina-access/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the registry.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ResourceExists reports whether a resource row exists.
func (r *Repository) ResourceExists(ctx context.Context, resourceID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM resources WHERE id = $1)`, resourceID).Scan(&exists)
	return exists, err
}

// Insert adds a permission to the registry.
func (r *Repository) Insert(ctx context.Context, name string, resourceID int64, description string) (Permission, error) {
	const query = `INSERT INTO permissions (name, resource_id, description)
	               VALUES ($1, $2, $3)
	               RETURNING id, name, description, resource_id, created_at, updated_at`
	var perm Permission
	err := r.pool.QueryRow(ctx, query, name, resourceID, description).
		Scan(&perm.ID, &perm.Name, &perm.Description, &perm.ResourceID, &perm.CreatedAt, &perm.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Permission{}, shared.Conflictf("permission %q already exists for resource %d", name, resourceID)
		}
		if db.IsForeignKeyViolation(err) {
			return Permission{}, shared.NotFoundf("resource %d", resourceID)
		}
		return Permission{}, fmt.Errorf("permissions: insert: %w", err)
	}
	return perm, nil
}

// List returns one registry page. Search matches permission name,
// description, or resource name, case-insensitively; a nonzero resource id
// narrows the page to that resource. The referencedByAnyRole flag is global:
// true when any role binds the permission, regardless of who is asking.
func (r *Repository) List(ctx context.Context, filter ListFilter, page shared.Pagination) ([]ListItem, int, error) {
	const query = `SELECT p.id, p.name, p.description, p.resource_id, p.created_at, p.updated_at,
	                      r.name,
	                      EXISTS (SELECT 1 FROM role_permissions rp WHERE rp.permission_id = p.id)
	               FROM permissions p
	               JOIN resources r ON r.id = p.resource_id
	               WHERE ($1 = 0 OR p.resource_id = $1)
	                 AND ($2 = '' OR p.name ILIKE '%' || $2 || '%' OR p.description ILIKE '%' || $2 || '%' OR r.name ILIKE '%' || $2 || '%')
	               ORDER BY p.id
	               LIMIT $3 OFFSET $4`
	rows, err := r.pool.Query(ctx, query, filter.ResourceID, filter.Search, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []ListItem
	for rows.Next() {
		var item ListItem
		err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.ResourceID,
			&item.CreatedAt, &item.UpdatedAt, &item.ResourceName, &item.ReferencedByAnyRole)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	const countQuery = `SELECT count(*)
	                    FROM permissions p
	                    JOIN resources r ON r.id = p.resource_id
	                    WHERE ($1 = 0 OR p.resource_id = $1)
	                      AND ($2 = '' OR p.name ILIKE '%' || $2 || '%' OR p.description ILIKE '%' || $2 || '%' OR r.name ILIKE '%' || $2 || '%')`
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, filter.ResourceID, filter.Search).Scan(&total); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Get fetches one permission by id.
func (r *Repository) Get(ctx context.Context, id int64) (Permission, error) {
	const query = `SELECT id, name, description, resource_id, created_at, updated_at FROM permissions WHERE id = $1`
	var perm Permission
	err := r.pool.QueryRow(ctx, query, id).
		Scan(&perm.ID, &perm.Name, &perm.Description, &perm.ResourceID, &perm.CreatedAt, &perm.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, shared.NotFoundf("permission %d", id)
		}
		return Permission{}, err
	}
	return perm, nil
}

// References reports how many role bindings and user grants still point at
// the permission.
func (r *Repository) References(ctx context.Context, id int64) (bindings, grants int64, err error) {
	const query = `SELECT
	                 (SELECT count(*) FROM role_permissions WHERE permission_id = $1),
	                 (SELECT count(*) FROM user_permissions WHERE permission_id = $1)`
	if err := r.pool.QueryRow(ctx, query, id).Scan(&bindings, &grants); err != nil {
		return 0, 0, err
	}
	return bindings, grants, nil
}

// Delete removes a permission by id.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return shared.Conflictf("permission %d in use", id)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("permission %d", id)
	}
	return nil
}

// UserExists reports whether a user row exists.
func (r *Repository) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	return exists, err
}

// ExistingPermissionIDs filters ids down to those present in the registry.
func (r *Repository) ExistingPermissionIDs(ctx context.Context, ids []int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM permissions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found = append(found, id)
	}
	return found, rows.Err()
}

// UserPermissionIDs returns the ids already granted directly to the user.
func (r *Repository) UserPermissionIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT permission_id FROM user_permissions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertUserPermissions grants permissions directly to a user, skipping rows
// that already exist.
func (r *Repository) InsertUserPermissions(ctx context.Context, userID int64, ids []int64) error {
	const query = `INSERT INTO user_permissions (user_id, permission_id)
	               SELECT $1, unnest($2::bigint[])
	               ON CONFLICT (user_id, permission_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, query, userID, ids)
	return err
}

var _ RepositoryPort = (*Repository)(nil)
