package repository

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"time"
)

// ActionTokenRepo persists hashed one-time tokens for password reset and
// email verification.  UNIQUE(user_id, purpose) plus the upsert below keep
// at most one active token per user per purpose: a second request
// supersedes the first.
type ActionTokenRepo struct{ DB *sql.DB }

func NewActionTokenRepo(db *sql.DB) *ActionTokenRepo { return &ActionTokenRepo{DB: db} }

// Upsert stores a token hash with its expiry, replacing any existing token
// for the same user and purpose.
func (r *ActionTokenRepo) Upsert(ctx context.Context, userID uint64, purpose, tokenHash string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO action_tokens (user_id, purpose, token_hash, expires_at)
		 VALUES (?,?,?,?)
		 ON DUPLICATE KEY UPDATE token_hash=VALUES(token_hash), expires_at=VALUES(expires_at), created_at=NOW()`,
		userID, purpose, tokenHash, expiresAt)
	return err
}

// Consume validates a token hash against the stored record and deletes it
// on success.  A missing record, expired record, or hash mismatch all
// return ErrTokenInvalid so callers answer with one generic message.
func (r *ActionTokenRepo) Consume(ctx context.Context, userID uint64, purpose, tokenHash string) error {
	var (
		stored    string
		expiresAt time.Time
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT token_hash, expires_at FROM action_tokens WHERE user_id=? AND purpose=? LIMIT 1",
		userID, purpose).Scan(&stored, &expiresAt)
	if err == sql.ErrNoRows {
		return ErrTokenInvalid
	}
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(tokenHash)) != 1 {
		return ErrTokenInvalid
	}
	if time.Now().UTC().After(expiresAt) {
		// Expired tokens are dead weight; clear the row so a fresh request
		// starts clean.
		_, _ = r.DB.ExecContext(ctx,
			"DELETE FROM action_tokens WHERE user_id=? AND purpose=?", userID, purpose)
		return ErrTokenInvalid
	}
	_, err = r.DB.ExecContext(ctx,
		"DELETE FROM action_tokens WHERE user_id=? AND purpose=?", userID, purpose)
	return err
}
