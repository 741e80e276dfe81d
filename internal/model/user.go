package model

import "time"

// User represents an application user record as stored in the `users`
// table.  Each field corresponds to a column in the database.  The json
// tags are omitted here because these structs are used internally by the
// repository layer; handlers define separate response types with
// appropriate JSON tags.
//
// Fields:
//
//	ID               – primary key identifier of the user.
//	Username         – unique username among non-deleted users.
//	Email            – unique email address among non-deleted users.
//	PasswordHash     – argon2id PHC-encoded password hash.
//	FirstName        – optional given name.
//	LastName         – optional family name.
//	IsActive         – whether the account may log in.
//	IsDeleted        – soft-delete marker; deleted rows are never returned
//	                   by normal lookups and do not count toward uniqueness.
//	TwoFactorEnabled – whether login requires a second factor.
//	EmailVerified    – whether the email address has been confirmed.
//	CreatedAt        – timestamp of creation.
//	UpdatedAt        – timestamp of last update.
type User struct {
	ID               uint64    // users.id
	Username         string    // users.username
	Email            string    // users.email
	PasswordHash     string    // users.password_hash
	FirstName        string    // users.first_name
	LastName         string    // users.last_name
	IsActive         bool      // users.is_active
	IsDeleted        bool      // users.is_deleted
	TwoFactorEnabled bool      // users.two_factor_enabled
	EmailVerified    bool      // users.email_verified
	CreatedAt        time.Time // users.created_at
	UpdatedAt        time.Time // users.updated_at
}

// Role represents a row in the `roles` table.  Roles are named permission
// bundles attached to users through the `user_roles` join table and to
// permissions through `role_permissions`.
type Role struct {
	ID   uint64 // roles.id
	Name string // roles.name (unique, e.g. ADMIN, USER)
}

// Permission represents a row in the `permissions` table: a named
// capability such as "create:users".
type Permission struct {
	ID   uint64 // permissions.id
	Name string // permissions.name (unique)
}

// Purposes an action token can be issued for.  One active token per user
// per purpose is enforced by a UNIQUE(user_id, purpose) constraint.
const (
	PurposePasswordReset     = "password_reset"
	PurposeEmailVerification = "email_verification"
)

// ActionToken models an entry in the `action_tokens` table: a hashed
// one-time token issued for password reset or email verification.  The
// plain token is dispatched out-of-band; only its SHA-256 hash is stored.
//
// Fields:
//
//	ID        – primary key identifier.
//	UserID    – owner of the token.
//	Purpose   – PurposePasswordReset or PurposeEmailVerification.
//	TokenHash – SHA-256 hex digest of the token value.
//	ExpiresAt – expiration timestamp of the token.
//	CreatedAt – timestamp of creation.
type ActionToken struct {
	ID        uint64    // action_tokens.id
	UserID    uint64    // action_tokens.user_id
	Purpose   string    // action_tokens.purpose
	TokenHash string    // action_tokens.token_hash
	ExpiresAt time.Time // action_tokens.expires_at
	CreatedAt time.Time // action_tokens.created_at
}
