package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumina-lms/lumina-access/internal/platform/db"
	"github.com/lumina-lms/lumina-access/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the directory.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Begin opens the unit of work used by user creation and deletion.
func (r *Repository) Begin(ctx context.Context) (TxRepository, error) {
	tx, err := db.Begin(ctx, r.pool)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// Tx is a transaction-scoped repository.
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

// InsertUser inserts a new directory entry.
func (t *Tx) InsertUser(ctx context.Context, email, name string) (User, error) {
	const query = `INSERT INTO users (email, name) VALUES ($1, $2)
	               RETURNING id, email, name, created_at, updated_at`
	var user User
	err := t.tx.QueryRow(ctx, query, email, name).
		Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, shared.Conflictf("user with email %q already exists", email)
		}
		return User{}, fmt.Errorf("users: insert: %w", err)
	}
	return user, nil
}

// RoleExists reports whether a role row exists, inside the transaction.
func (t *Tx) RoleExists(ctx context.Context, roleID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, roleID).Scan(&exists)
	return exists, err
}

// InsertAssignment links a user to a role, skipping duplicates.
func (t *Tx) InsertAssignment(ctx context.Context, userID, roleID int64) error {
	const query = `INSERT INTO user_role_assignments (user_id, role_id) VALUES ($1, $2)
	               ON CONFLICT (user_id, role_id) DO NOTHING`
	_, err := t.tx.Exec(ctx, query, userID, roleID)
	return err
}

// DeleteUserCascade removes a user with its assignments and direct grants.
func (t *Tx) DeleteUserCascade(ctx context.Context, userID int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM user_role_assignments WHERE user_id = $1`, userID); err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM user_permissions WHERE user_id = $1`, userID); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("user %d", userID)
	}
	return nil
}

const listQuery = `SELECT u.id, u.email, u.name, u.created_at, u.updated_at,
                          coalesce(json_agg(json_build_object('id', r.id, 'name', r.name))
                                   FILTER (WHERE r.id IS NOT NULL), '[]')
                   FROM users u
                   LEFT JOIN user_role_assignments ura ON ura.user_id = u.id
                   LEFT JOIN roles r ON r.id = ura.role_id
                   WHERE ($1 = '' OR u.email ILIKE '%' || $1 || '%' OR u.name ILIKE '%' || $1 || '%')
                     AND ($2 = 0 OR u.id IN (SELECT user_id FROM user_role_assignments WHERE role_id = $2))
                   GROUP BY u.id
                   ORDER BY u.id
                   LIMIT $3 OFFSET $4`

// List returns one directory page joined with role assignments.
func (r *Repository) List(ctx context.Context, filter ListFilter, page shared.Pagination) ([]UserWithRoles, int, error) {
	rows, err := r.pool.Query(ctx, listQuery, filter.Search, filter.RoleID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []UserWithRoles
	for rows.Next() {
		item, err := scanUserWithRoles(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	const countQuery = `SELECT count(*) FROM users u
	                    WHERE ($1 = '' OR u.email ILIKE '%' || $1 || '%' OR u.name ILIKE '%' || $1 || '%')
	                      AND ($2 = 0 OR u.id IN (SELECT user_id FROM user_role_assignments WHERE role_id = $2))`
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, filter.Search, filter.RoleID).Scan(&total); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Get fetches one user with role assignments.
func (r *Repository) Get(ctx context.Context, id int64) (UserWithRoles, error) {
	const query = `SELECT u.id, u.email, u.name, u.created_at, u.updated_at,
	                      coalesce(json_agg(json_build_object('id', r.id, 'name', r.name))
	                               FILTER (WHERE r.id IS NOT NULL), '[]')
	               FROM users u
	               LEFT JOIN user_role_assignments ura ON ura.user_id = u.id
	               LEFT JOIN roles r ON r.id = ura.role_id
	               WHERE u.id = $1
	               GROUP BY u.id`
	item, err := scanUserWithRoles(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserWithRoles{}, shared.NotFoundf("user %d", id)
		}
		return UserWithRoles{}, err
	}
	return item, nil
}

// Update applies the provided fields to a user.
func (r *Repository) Update(ctx context.Context, id int64, input UpdateInput) (User, error) {
	set := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if input.Email != nil {
		args = append(args, *input.Email)
		set = append(set, fmt.Sprintf("email = $%d", len(args)))
	}
	if input.Name != nil {
		args = append(args, *input.Name)
		set = append(set, fmt.Sprintf("name = $%d", len(args)))
	}
	set = append(set, "updated_at = now()")
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d
	                      RETURNING id, email, name, created_at, updated_at`,
		strings.Join(set, ", "), len(args))

	var user User
	err := r.pool.QueryRow(ctx, query, args...).
		Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.NotFoundf("user %d", id)
		}
		if db.IsUniqueViolation(err) {
			return User{}, shared.Conflictf("email already in use")
		}
		return User{}, err
	}
	return user, nil
}

// UserExists reports whether a user row exists.
func (r *Repository) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	return exists, err
}

// RoleExists reports whether a role row exists.
func (r *Repository) RoleExists(ctx context.Context, roleID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, roleID).Scan(&exists)
	return exists, err
}

// AssignRole links a user to a role. Returns false when the assignment
// already existed.
func (r *Repository) AssignRole(ctx context.Context, userID, roleID int64) (bool, error) {
	const query = `INSERT INTO user_role_assignments (user_id, role_id) VALUES ($1, $2)
	               ON CONFLICT (user_id, role_id) DO NOTHING`
	tag, err := r.pool.Exec(ctx, query, userID, roleID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanUserWithRoles(row pgx.Row) (UserWithRoles, error) {
	var item UserWithRoles
	var rolesJSON []byte
	err := row.Scan(&item.ID, &item.Email, &item.Name, &item.CreatedAt, &item.UpdatedAt, &rolesJSON)
	if err != nil {
		return UserWithRoles{}, err
	}
	if err := json.Unmarshal(rolesJSON, &item.Roles); err != nil {
		return UserWithRoles{}, err
	}
	return item, nil
}

var _ RepositoryPort = (*Repository)(nil)
