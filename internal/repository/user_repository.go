package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/finbook/finbook-api/internal/model"
)

// UserRepo provides access to the users table and its role links.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,username,email,password_hash,first_name,last_name,is_active,is_deleted,two_factor_enabled,email_verified,created_at,updated_at"

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName,
		&u.LastName, &u.IsActive, &u.IsDeleted, &u.TwoFactorEnabled,
		&u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

// Create inserts a user and attaches the default role within one
// transaction, creating the role row if absent.  Email and username
// uniqueness is enforced among non-deleted users only, so a soft-deleted
// account does not block re-registration.
func (r *UserRepo) Create(ctx context.Context, username, email, passwordHash, firstName, lastName, defaultRole string) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	// Locked pre-check scoped to non-deleted rows for the friendly error.
	// The sentinel-keyed unique indexes (uq_users_email, uq_users_username
	// over the deleted_key generated column) remain the authority when two
	// registrations race past it.
	var clash string
	err = tx.QueryRowContext(ctx,
		"SELECT CASE WHEN email=? THEN 'email' ELSE 'username' END FROM users WHERE (email=? OR username=?) AND is_deleted=0 LIMIT 1 FOR UPDATE",
		email, email, username).Scan(&clash)
	switch {
	case err == nil:
		if clash == "email" {
			return 0, ErrEmailExists
		}
		return 0, ErrUsernameExists
	case err != sql.ErrNoRows:
		return 0, err
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash, first_name, last_name) VALUES (?,?,?,?,?)",
		username, email, passwordHash, firstName, lastName)
	if err != nil {
		return 0, duplicateError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT IGNORE INTO roles (name) VALUES (?)", defaultRole); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO user_roles (user_id, role_id) SELECT ?, id FROM roles WHERE name=?",
		id, defaultRole); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByLogin fetches an active, non-deleted user by email or username.
// The login endpoint accepts either in its email field.
func (r *UserRepo) GetByLogin(ctx context.Context, login string) (model.User, error) {
	login = strings.TrimSpace(login)
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE (email=? OR username=?) AND is_active=1 AND is_deleted=0 LIMIT 1",
		strings.ToLower(login), login))
}

// GetByEmail fetches a non-deleted user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? AND is_deleted=0 LIMIT 1", email))
}

// GetByID fetches a non-deleted user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? AND is_deleted=0 LIMIT 1", id))
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, passwordHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, updated_at=NOW() WHERE id=? AND is_deleted=0",
		passwordHash, id)
	return err
}

// MarkEmailVerified flips the email_verified flag.
func (r *UserRepo) MarkEmailVerified(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email_verified=1, updated_at=NOW() WHERE id=? AND is_deleted=0", id)
	return err
}

// SoftDelete marks the account deleted without removing the row.
func (r *UserRepo) SoftDelete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_deleted=1, is_active=0, updated_at=NOW() WHERE id=? AND is_deleted=0", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// HardDelete physically removes a user and its role links.  Administrative
// operation only; normal account deletion is SoftDelete.
func (r *UserRepo) HardDelete(ctx context.Context, id uint64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, "DELETE FROM user_roles WHERE user_id=?", id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// List returns a page of non-deleted users ordered by id.
func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]model.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE is_deleted=0 ORDER BY id LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName,
			&u.LastName, &u.IsActive, &u.IsDeleted, &u.TwoFactorEnabled,
			&u.EmailVerified, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
