package repo

import (
	"context"
	"database/sql"
	"strings"

	"docflow/internal/domain"
)

func (r Repo) InsertActor(ctx context.Context, a domain.Actor) error {
	_, err := r.DB.ExecContext(ctx, r.q(`INSERT INTO actors(id,username,full_name,department_id,role_id,is_admin,created_at) VALUES (?,?,?,?,?,?,?)`),
		a.ID, a.Username, nullable(a.FullName), nullableInt64Ptr(a.DepartmentID), nullableInt64Ptr(a.RoleID), a.IsAdmin, a.CreatedAt)
	return err
}

func (r Repo) GetActor(ctx context.Context, id string) (domain.Actor, error) {
	return scanActor(r.DB.QueryRowContext(ctx, r.q(`SELECT id,username,full_name,department_id,role_id,is_admin,created_at FROM actors WHERE id=?`), id))
}

func (r Repo) ListActors(ctx context.Context) ([]domain.Actor, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,username,full_name,department_id,role_id,is_admin,created_at FROM actors ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Actor
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func scanActor(row rowScanner) (domain.Actor, error) {
	var a domain.Actor
	var fullName sql.NullString
	var dept, role sql.NullInt64
	err := row.Scan(&a.ID, &a.Username, &fullName, &dept, &role, &a.IsAdmin, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	a.FullName = fullName.String
	a.DepartmentID = int64Ptr(dept)
	a.RoleID = int64Ptr(role)
	return a, err
}

// EnsureDepartment inserts the department if missing and returns its id.
func (r Repo) EnsureDepartment(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	if _, err := tx.ExecContext(ctx, r.q(`INSERT INTO departments(name) VALUES (?) ON CONFLICT DO NOTHING`), name); err != nil {
		return 0, err
	}
	var id int64
	err := tx.QueryRowContext(ctx, r.q(`SELECT id FROM departments WHERE name=?`), name).Scan(&id)
	return id, err
}

func (r Repo) DepartmentID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, r.q(`SELECT id FROM departments WHERE name=?`), name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return id, err
}

// EnsureRole inserts the role if missing and returns its id.
func (r Repo) EnsureRole(ctx context.Context, tx *sql.Tx, name, desc string) (int64, error) {
	if _, err := tx.ExecContext(ctx, r.q(`INSERT INTO roles(name, description) VALUES (?,?) ON CONFLICT DO NOTHING`), name, nullable(desc)); err != nil {
		return 0, err
	}
	var id int64
	err := tx.QueryRowContext(ctx, r.q(`SELECT id FROM roles WHERE name=?`), name).Scan(&id)
	return id, err
}

func (r Repo) RoleID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, r.q(`SELECT id FROM roles WHERE name=?`), name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return id, err
}

func (r Repo) ListRoles(ctx context.Context) ([]domain.Role, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,COALESCE(description,'') FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Role
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description); err != nil {
			return nil, err
		}
		res = append(res, role)
	}
	return res, rows.Err()
}

// EnsurePermission inserts the permission code if missing and returns its id.
func (r Repo) EnsurePermission(ctx context.Context, tx *sql.Tx, code, desc string) (int64, error) {
	if _, err := tx.ExecContext(ctx, r.q(`INSERT INTO permissions(code, description) VALUES (?,?) ON CONFLICT DO NOTHING`), code, nullable(desc)); err != nil {
		return 0, err
	}
	var id int64
	err := tx.QueryRowContext(ctx, r.q(`SELECT id FROM permissions WHERE code=?`), code).Scan(&id)
	return id, err
}

func (r Repo) AddRolePermission(ctx context.Context, tx *sql.Tx, roleID, permID int64) error {
	_, err := tx.ExecContext(ctx, r.q(`INSERT INTO role_permissions(role_id, permission_id) VALUES (?,?) ON CONFLICT DO NOTHING`), roleID, permID)
	return err
}

func (r Repo) AssignRole(ctx context.Context, tx *sql.Tx, actorID string, roleID int64) error {
	_, err := tx.ExecContext(ctx, r.q(`INSERT INTO actor_roles(actor_id, role_id) VALUES (?,?) ON CONFLICT DO NOTHING`), actorID, roleID)
	return err
}

func (r Repo) RevokeRole(ctx context.Context, tx *sql.Tx, actorID string, roleID int64) error {
	_, err := tx.ExecContext(ctx, r.q(`DELETE FROM actor_roles WHERE actor_id=? AND role_id=?`), actorID, roleID)
	return err
}

// ActorRoleNames returns the direct role name first, then joined role names.
func (r Repo) ActorRoleNames(ctx context.Context, actorID string) ([]string, error) {
	var names []string
	var direct sql.NullString
	err := r.DB.QueryRowContext(ctx, r.q(`SELECT r.name FROM actors a JOIN roles r ON r.id=a.role_id WHERE a.id=?`), actorID).Scan(&direct)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if direct.Valid {
		names = append(names, direct.String)
	}
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT r.name FROM actor_roles ar JOIN roles r ON r.id=ar.role_id WHERE ar.actor_id=? ORDER BY r.name`), actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// PermissionIDByCode looks up a permission row; found is false when the code is not configured.
func (r Repo) PermissionIDByCode(ctx context.Context, code string) (int64, bool, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, r.q(`SELECT id FROM permissions WHERE code=?`), code).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// RolesGrantPermission reports whether any role named in roleNames holds permID.
func (r Repo) RolesGrantPermission(ctx context.Context, roleNames []string, permID int64) (bool, error) {
	if len(roleNames) == 0 {
		return false, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(roleNames)), ",")
	args := make([]any, 0, len(roleNames)+1)
	for _, n := range roleNames {
		args = append(args, n)
	}
	args = append(args, permID)
	var n int
	err := r.DB.QueryRowContext(ctx, r.q(`
SELECT 1 FROM roles r
JOIN role_permissions rp ON rp.role_id=r.id
WHERE r.name IN (`+placeholders+`) AND rp.permission_id=? LIMIT 1`), args...).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) UpsertStatus(ctx context.Context, tx *sql.Tx, catalog, name string, id int64) error {
	_, err := tx.ExecContext(ctx, r.q(`INSERT INTO statuses(catalog,name,id) VALUES (?,?,?) ON CONFLICT(catalog,name) DO UPDATE SET id=excluded.id`), catalog, name, id)
	return err
}

// StatusID resolves a symbolic status within a catalog.
func (r Repo) StatusID(ctx context.Context, catalog, name string) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, r.q(`SELECT id FROM statuses WHERE catalog=? AND name=?`), catalog, name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return id, err
}

func (r Repo) StatusName(ctx context.Context, catalog string, id int64) (string, error) {
	var name string
	err := r.DB.QueryRowContext(ctx, r.q(`SELECT name FROM statuses WHERE catalog=? AND id=?`), catalog, id).Scan(&name)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return name, err
}
