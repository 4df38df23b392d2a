package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumina-lms/lumina-access/internal/audit"
	"github.com/lumina-lms/lumina-access/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the engine.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Begin opens the unit of work a reconcile run executes in.
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

func (t *Tx) exists(ctx context.Context, query string, id int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, query, id).Scan(&exists)
	return exists, err
}

// UserExists reports whether a user row exists.
func (t *Tx) UserExists(ctx context.Context, id int64) (bool, error) {
	return t.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id)
}

// RoleExists reports whether a role row exists.
func (t *Tx) RoleExists(ctx context.Context, id int64) (bool, error) {
	return t.exists(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, id)
}

// ResourceExists reports whether a resource row exists.
func (t *Tx) ResourceExists(ctx context.Context, id int64) (bool, error) {
	return t.exists(ctx, `SELECT EXISTS (SELECT 1 FROM resources WHERE id = $1)`, id)
}

// ResourcePermissionIDs returns the ids of all permissions under a resource.
func (t *Tx) ResourcePermissionIDs(ctx context.Context, resourceID int64) ([]int64, error) {
	return scanIDs(t.tx.Query(ctx, `SELECT id FROM permissions WHERE resource_id = $1`, resourceID))
}

// InsertRolePermissions binds permissions to a role, skipping existing rows.
func (t *Tx) InsertRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if len(permissionIDs) == 0 {
		return nil
	}
	const query = `INSERT INTO role_permissions (role_id, permission_id)
	               SELECT $1, unnest($2::bigint[])
	               ON CONFLICT (role_id, permission_id) DO NOTHING`
	_, err := t.tx.Exec(ctx, query, roleID, permissionIDs)
	return err
}

// DeleteRolePermissions unbinds permissions from a role. Missing rows are
// not an error.
func (t *Tx) DeleteRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if len(permissionIDs) == 0 {
		return nil
	}
	const query = `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = ANY($2)`
	_, err := t.tx.Exec(ctx, query, roleID, permissionIDs)
	return err
}

// AssignedPermissionIDs re-reads the permission ids bound to the role for
// one resource, inside the transaction.
func (t *Tx) AssignedPermissionIDs(ctx context.Context, roleID, resourceID int64) ([]int64, error) {
	const query = `SELECT rp.permission_id
	               FROM role_permissions rp
	               JOIN permissions p ON p.id = rp.permission_id
	               WHERE rp.role_id = $1 AND p.resource_id = $2
	               ORDER BY rp.permission_id`
	return scanIDs(t.tx.Query(ctx, query, roleID, resourceID))
}

// AppendAudit inserts the reconcile log entry in the same transaction as the
// binding changes.
func (t *Tx) AppendAudit(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	var meta []byte
	if entry.Meta != nil {
		var err error
		meta, err = json.Marshal(entry.Meta)
		if err != nil {
			return audit.Entry{}, fmt.Errorf("rbac: encode meta: %w", err)
		}
	}
	const query = `INSERT INTO audit_logs (action, actor_id, target_user_id, role_id, permission_id, scope_id, meta)
	               VALUES ($1, $2, $3, $4, $5, $6, $7)
	               RETURNING id, created_at`
	err := t.tx.QueryRow(ctx, query,
		entry.Action, entry.ActorID, entry.TargetUserID, entry.RoleID, entry.PermissionID, entry.ScopeID, meta).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return audit.Entry{}, fmt.Errorf("rbac: append audit: %w", err)
	}
	return entry, nil
}

// RolePermissionsByResource returns every permission under a resource with a
// per-role granted flag.
func (r *Repository) RolePermissionsByResource(ctx context.Context, roleID, resourceID int64) ([]RolePermission, error) {
	const query = `SELECT p.id, p.name, p.description, rp.permission_id IS NOT NULL
	               FROM permissions p
	               LEFT JOIN role_permissions rp ON rp.permission_id = p.id AND rp.role_id = $1
	               WHERE p.resource_id = $2
	               ORDER BY p.id`
	rows, err := r.pool.Query(ctx, query, roleID, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RolePermission
	for rows.Next() {
		var rp RolePermission
		if err := rows.Scan(&rp.PermissionID, &rp.Name, &rp.Description, &rp.Granted); err != nil {
			return nil, err
		}
		result = append(result, rp)
	}
	return result, rows.Err()
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

// ResourceExists reports whether a resource row exists.
func (r *Repository) ResourceExists(ctx context.Context, resourceID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM resources WHERE id = $1)`, resourceID).Scan(&exists)
	return exists, err
}

// EffectivePermissionNames returns the distinct permission names a user
// holds anywhere, through roles or direct grants.
func (r *Repository) EffectivePermissionNames(ctx context.Context, userID int64) ([]string, error) {
	const query = `SELECT DISTINCT p.name
	               FROM permissions p
	               WHERE p.id IN (
	                 SELECT rp.permission_id
	                 FROM role_permissions rp
	                 JOIN user_role_assignments ura ON ura.role_id = rp.role_id
	                 WHERE ura.user_id = $1
	                 UNION
	                 SELECT up.permission_id FROM user_permissions up WHERE up.user_id = $1
	               )
	               ORDER BY p.name`
	return scanStrings(r.pool.Query(ctx, query, userID))
}

// ResourcePermissionNames returns the distinct permission names a user holds
// on one resource key.
func (r *Repository) ResourcePermissionNames(ctx context.Context, userID int64, resourceKey string) ([]string, error) {
	const query = `SELECT DISTINCT p.name
	               FROM permissions p
	               JOIN resources res ON res.id = p.resource_id
	               WHERE res.key = $2
	                 AND p.id IN (
	                   SELECT rp.permission_id
	                   FROM role_permissions rp
	                   JOIN user_role_assignments ura ON ura.role_id = rp.role_id
	                   WHERE ura.user_id = $1
	                   UNION
	                   SELECT up.permission_id FROM user_permissions up WHERE up.user_id = $1
	                 )
	               ORDER BY p.name`
	return scanStrings(r.pool.Query(ctx, query, userID, resourceKey))
}

// ResourcePermissionNamesByID returns the distinct permission names a user
// holds on one resource id.
func (r *Repository) ResourcePermissionNamesByID(ctx context.Context, userID, resourceID int64) ([]string, error) {
	const query = `SELECT DISTINCT p.name
	               FROM permissions p
	               WHERE p.resource_id = $2
	                 AND p.id IN (
	                   SELECT rp.permission_id
	                   FROM role_permissions rp
	                   JOIN user_role_assignments ura ON ura.role_id = rp.role_id
	                   WHERE ura.user_id = $1
	                   UNION
	                   SELECT up.permission_id FROM user_permissions up WHERE up.user_id = $1
	                 )
	               ORDER BY p.name`
	return scanStrings(r.pool.Query(ctx, query, userID, resourceID))
}

// CheckUserPermission reports whether a user holds a permission name through
// role bindings and through direct grants. An empty resourceKey matches the
// name on any resource.
func (r *Repository) CheckUserPermission(ctx context.Context, userID int64, permissionName, resourceKey string) (roleBased, extra bool, err error) {
	const query = `SELECT
	                 EXISTS (
	                   SELECT 1
	                   FROM role_permissions rp
	                   JOIN user_role_assignments ura ON ura.role_id = rp.role_id
	                   JOIN permissions p ON p.id = rp.permission_id
	                   JOIN resources res ON res.id = p.resource_id
	                   WHERE ura.user_id = $1 AND p.name = $2 AND ($3 = '' OR res.key = $3)
	                 ),
	                 EXISTS (
	                   SELECT 1
	                   FROM user_permissions up
	                   JOIN permissions p ON p.id = up.permission_id
	                   JOIN resources res ON res.id = p.resource_id
	                   WHERE up.user_id = $1 AND p.name = $2 AND ($3 = '' OR res.key = $3)
	                 )`
	if err := r.pool.QueryRow(ctx, query, userID, permissionName, resourceKey).Scan(&roleBased, &extra); err != nil {
		return false, false, err
	}
	return roleBased, extra, nil
}

func scanIDs(rows pgx.Rows, err error) ([]int64, error) {
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

func scanStrings(rows pgx.Rows, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

var _ RepositoryPort = (*Repository)(nil)
