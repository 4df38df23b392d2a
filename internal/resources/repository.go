package resources

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

// Repository provides PostgreSQL backed persistence for the catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Begin opens the unit of work used by resource provisioning.
func (r *Repository) Begin(ctx context.Context) (TxRepository, error) {
	tx, err := db.Begin(ctx, r.pool)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// Tx is a transaction-scoped repository. Rollback after Commit is a no-op.
type Tx struct {
	tx pgx.Tx
}

// Commit commits the unit of work.
func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback aborts the unit of work; safe to defer.
func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// InsertResource inserts a new resource row.
func (t *Tx) InsertResource(ctx context.Context, input CreateInput) (Resource, error) {
	const query = `INSERT INTO resources (key, name, description)
	               VALUES ($1, $2, $3)
	               RETURNING id, key, name, description, created_at, updated_at`
	var res Resource
	err := t.tx.QueryRow(ctx, query, input.Key, input.Name, input.Description).
		Scan(&res.ID, &res.Key, &res.Name, &res.Description, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Resource{}, shared.Conflictf("resource with key %q or name %q already exists", input.Key, input.Name)
		}
		return Resource{}, fmt.Errorf("resources: insert: %w", err)
	}
	return res, nil
}

// InsertDefaultPermissions seeds the default permission set for a resource.
func (t *Tx) InsertDefaultPermissions(ctx context.Context, resourceID int64, defs []DefaultPermission) error {
	if len(defs) == 0 {
		return nil
	}
	values := make([]string, 0, len(defs))
	args := make([]any, 0, len(defs)*2+1)
	args = append(args, resourceID)
	for _, def := range defs {
		values = append(values, fmt.Sprintf("($1, $%d, $%d)", len(args)+1, len(args)+2))
		args = append(args, def.Name, def.Description)
	}
	query := `INSERT INTO permissions (resource_id, name, description) VALUES ` + strings.Join(values, ", ")
	if _, err := t.tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("resources: seed default permissions: %w", err)
	}
	return nil
}

// List returns all resources ordered by key.
func (r *Repository) List(ctx context.Context) ([]Resource, error) {
	const query = `SELECT id, key, name, description, created_at, updated_at FROM resources ORDER BY key`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Resource
	for rows.Next() {
		var res Resource
		if err := rows.Scan(&res.ID, &res.Key, &res.Name, &res.Description, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, res)
	}
	return result, rows.Err()
}

// Get fetches one resource by id.
func (r *Repository) Get(ctx context.Context, id int64) (Resource, error) {
	const query = `SELECT id, key, name, description, created_at, updated_at FROM resources WHERE id = $1`
	var res Resource
	err := r.pool.QueryRow(ctx, query, id).
		Scan(&res.ID, &res.Key, &res.Name, &res.Description, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Resource{}, shared.NotFoundf("resource %d", id)
		}
		return Resource{}, err
	}
	return res, nil
}

// Update applies the provided fields to a resource.
func (r *Repository) Update(ctx context.Context, id int64, input UpdateInput) (Resource, error) {
	set := make([]string, 0, 4)
	args := make([]any, 0, 4)
	if input.Key != nil {
		args = append(args, *input.Key)
		set = append(set, fmt.Sprintf("key = $%d", len(args)))
	}
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
	query := fmt.Sprintf(`UPDATE resources SET %s WHERE id = $%d
	                      RETURNING id, key, name, description, created_at, updated_at`,
		strings.Join(set, ", "), len(args))

	var res Resource
	err := r.pool.QueryRow(ctx, query, args...).
		Scan(&res.ID, &res.Key, &res.Name, &res.Description, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Resource{}, shared.NotFoundf("resource %d", id)
		}
		if db.IsUniqueViolation(err) {
			return Resource{}, shared.Conflictf("resource key or name already in use")
		}
		return Resource{}, err
	}
	return res, nil
}

// CountPermissions reports how many permissions still reference the resource.
func (r *Repository) CountPermissions(ctx context.Context, resourceID int64) (int64, error) {
	const query = `SELECT count(*) FROM permissions WHERE resource_id = $1`
	var count int64
	if err := r.pool.QueryRow(ctx, query, resourceID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Delete removes a resource by id.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return shared.Conflictf("resource %d in use", id)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("resource %d", id)
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
