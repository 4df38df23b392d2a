package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumina-lms/lumina-access/internal/platform/db"
	"github.com/lumina-lms/lumina-access/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the log.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Begin opens the unit of work an event executes in.
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

// PermissionExists reports whether a permission row exists.
func (t *Tx) PermissionExists(ctx context.Context, id int64) (bool, error) {
	return t.exists(ctx, `SELECT EXISTS (SELECT 1 FROM permissions WHERE id = $1)`, id)
}

// ResourceExists reports whether a resource row exists.
func (t *Tx) ResourceExists(ctx context.Context, id int64) (bool, error) {
	return t.exists(ctx, `SELECT EXISTS (SELECT 1 FROM resources WHERE id = $1)`, id)
}

// InsertRoleAssignment links a user to a role, skipping duplicates.
func (t *Tx) InsertRoleAssignment(ctx context.Context, userID, roleID int64) error {
	const query = `INSERT INTO user_role_assignments (user_id, role_id) VALUES ($1, $2)
	               ON CONFLICT (user_id, role_id) DO NOTHING`
	_, err := t.tx.Exec(ctx, query, userID, roleID)
	return err
}

// InsertUserPermission grants a permission directly to a user, skipping
// duplicates.
func (t *Tx) InsertUserPermission(ctx context.Context, userID, permissionID int64) error {
	const query = `INSERT INTO user_permissions (user_id, permission_id) VALUES ($1, $2)
	               ON CONFLICT (user_id, permission_id) DO NOTHING`
	_, err := t.tx.Exec(ctx, query, userID, permissionID)
	return err
}

// Append inserts one log entry and returns it with id and timestamp set.
func (t *Tx) Append(ctx context.Context, entry Entry) (Entry, error) {
	var meta []byte
	if entry.Meta != nil {
		var err error
		meta, err = json.Marshal(entry.Meta)
		if err != nil {
			return Entry{}, fmt.Errorf("audit: encode meta: %w", err)
		}
	}
	const query = `INSERT INTO audit_logs (action, actor_id, target_user_id, role_id, permission_id, scope_id, meta)
	               VALUES ($1, $2, $3, $4, $5, $6, $7)
	               RETURNING id, created_at`
	err := t.tx.QueryRow(ctx, query,
		entry.Action, entry.ActorID, entry.TargetUserID, entry.RoleID, entry.PermissionID, entry.ScopeID, meta).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("audit: append: %w", err)
	}
	return entry, nil
}

const entryColumns = `id, action, actor_id, target_user_id, role_id, permission_id, scope_id, meta, created_at`

// List returns one log page, newest first, each row joined with the display
// fields of the users, role, permission, and resource it references.
func (r *Repository) List(ctx context.Context, filter ListFilter, page shared.Pagination) ([]ListEntry, int, error) {
	const query = `SELECT a.id, a.action, a.actor_id, a.target_user_id, a.role_id, a.permission_id, a.scope_id, a.meta, a.created_at,
	                      actor.name, actor.email, target.name, target.email, ro.name, p.name, res.name
	               FROM audit_logs a
	               LEFT JOIN users actor ON actor.id = a.actor_id
	               LEFT JOIN users target ON target.id = a.target_user_id
	               LEFT JOIN roles ro ON ro.id = a.role_id
	               LEFT JOIN permissions p ON p.id = a.permission_id
	               LEFT JOIN resources res ON res.id = a.scope_id
	               WHERE ($1 = '' OR a.action = $1)
	                 AND ($2 = 0 OR a.target_user_id = $2)
	               ORDER BY a.created_at DESC, a.id DESC
	               LIMIT $3 OFFSET $4`
	rows, err := r.pool.Query(ctx, query, filter.Action, filter.TargetUserID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []ListEntry
	for rows.Next() {
		var item ListEntry
		var meta []byte
		err := rows.Scan(&item.ID, &item.Action, &item.ActorID, &item.TargetUserID,
			&item.RoleID, &item.PermissionID, &item.ScopeID, &meta, &item.CreatedAt,
			&item.ActorName, &item.ActorEmail, &item.TargetName, &item.TargetEmail,
			&item.RoleName, &item.PermissionName, &item.ScopeName)
		if err != nil {
			return nil, 0, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &item.Meta); err != nil {
				return nil, 0, err
			}
		}
		entries = append(entries, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	const countQuery = `SELECT count(*) FROM audit_logs
	                    WHERE ($1 = '' OR action = $1)
	                      AND ($2 = 0 OR target_user_id = $2)`
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, filter.Action, filter.TargetUserID).Scan(&total); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Get fetches one log entry by id.
func (r *Repository) Get(ctx context.Context, id int64) (Entry, error) {
	entry, err := scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM audit_logs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, shared.NotFoundf("audit entry %d", id)
		}
		return Entry{}, err
	}
	return entry, nil
}

// ListAll streams every entry newest first, for exports.
func (r *Repository) ListAll(ctx context.Context) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM audit_logs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(row pgx.Row) (Entry, error) {
	var entry Entry
	var meta []byte
	err := row.Scan(&entry.ID, &entry.Action, &entry.ActorID, &entry.TargetUserID,
		&entry.RoleID, &entry.PermissionID, &entry.ScopeID, &meta, &entry.CreatedAt)
	if err != nil {
		return Entry{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &entry.Meta); err != nil {
			return Entry{}, err
		}
	}
	return entry, nil
}

var _ RepositoryPort = (*Repository)(nil)
