package repository

import (
	"context"
	"database/sql"
)

// RoleRepo resolves role and permission relations.  Role names ride inside
// access tokens and are resolved once at login; permission lookups are
// live so a permission change takes effect without waiting for token
// expiry.
type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

// RolesForUser returns the role names attached to a user.
func (r *RoleRepo) RolesForUser(ctx context.Context, userID uint64) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT r.name FROM roles r JOIN user_roles ur ON ur.role_id=r.id WHERE ur.user_id=?",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// PermissionsForUser returns the union of permission names granted through
// all of the user's roles, normalized to a set.
func (r *RoleRepo) PermissionsForUser(ctx context.Context, userID uint64) (map[string]struct{}, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT DISTINCT p.name
		   FROM permissions p
		   JOIN role_permissions rp ON rp.permission_id=p.id
		   JOIN user_roles ur ON ur.role_id=rp.role_id
		  WHERE ur.user_id=?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	perms := make(map[string]struct{})
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		perms[n] = struct{}{}
	}
	return perms, rows.Err()
}
