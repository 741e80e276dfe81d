package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"   // secure random generation for one-time tokens
	"crypto/sha256" // SHA-256 hashing for one-time action tokens
	"encoding/hex"  // hex encoding for random tokens and digests
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"       // unique token ids so every issue is distinct
)

// Claims is the decoded content of a verified token.  Roles is populated
// only for access tokens; refresh tokens carry the subject alone.
type Claims struct {
	UserID   uint64
	Email    string
	Roles    []string
	IssuedAt time.Time
	Expires  time.Time
}

// TokenIssuer signs and verifies the two token classes.  Access tokens are
// short-lived and carry identity plus role claims; refresh tokens are
// longer-lived and carry only the subject.  The two classes use distinct
// secrets so a leaked refresh secret cannot mint access tokens and vice
// versa.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenIssuer validates the secrets and returns an issuer.  Empty
// secrets are a fatal configuration error surfaced here so the process can
// refuse to start.
func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*TokenIssuer, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("token secrets must not be empty")
	}
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}, nil
}

// RefreshTTL exposes the refresh lifetime for cookie Max-Age and cache TTL.
func (ti *TokenIssuer) RefreshTTL() time.Duration { return ti.refreshTTL }

// IssueAccess builds and signs an HS256 access token.  The JWT includes the
// standard claims subject (sub), expiration (exp) and issued-at (iat) plus
// email and the role names resolved at login time.
func (ti *TokenIssuer) IssueAccess(userID uint64, email string, roles []string) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(ti.accessTTL)
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"roles": roles,
		"exp":   exp.Unix(),
		"iat":   now.Unix(),
		"jti":   uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.accessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// IssueRefresh builds and signs an HS256 refresh token carrying only the
// subject.  The raw token is handed to the client in a cookie and stored
// verbatim in the session cache; the cache entry, not the token's own
// expiry, is the source of truth for revocation.  The jti claim makes every
// issued token distinct, so a rotation always replaces the cached value.
func (ti *TokenIssuer) IssueRefresh(userID uint64) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(ti.refreshTTL)
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": exp.Unix(),
		"iat": now.Unix(),
		"jti": uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.refreshSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyAccess parses and validates an access token.  It returns nil on
// expiry or signature mismatch so callers can answer a uniform 401 without
// leaking which failure occurred; the distinction belongs in debug logs
// only.
func (ti *TokenIssuer) VerifyAccess(raw string) *Claims {
	return verify(raw, ti.accessSecret)
}

// VerifyRefresh is VerifyAccess for the refresh class.
func (ti *TokenIssuer) VerifyRefresh(raw string) *Claims {
	return verify(raw, ti.refreshSecret)
}

func verify(raw string, secret []byte) *Claims {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		// Reject tokens signed with anything but HMAC before touching claims.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !tok.Valid {
		return nil
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil
	}
	sub, ok := mc["sub"].(float64)
	if !ok || sub <= 0 {
		return nil
	}
	c := &Claims{UserID: uint64(sub)}
	if email, ok := mc["email"].(string); ok {
		c.Email = email
	}
	if raw, ok := mc["roles"].([]interface{}); ok {
		for _, r := range raw {
			if name, ok := r.(string); ok {
				c.Roles = append(c.Roles, name)
			}
		}
	}
	if iat, ok := mc["iat"].(float64); ok {
		c.IssuedAt = time.Unix(int64(iat), 0).UTC()
	}
	if exp, ok := mc["exp"].(float64); ok {
		c.Expires = time.Unix(int64(exp), 0).UTC()
	}
	return c
}

// NewActionToken returns a cryptographically secure random token used for
// password reset and email verification.  Only its SHA-256 hash is stored;
// the raw value is dispatched out-of-band.
func NewActionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashActionToken returns the SHA-256 hash of a raw one-time token as a hex
// string.  Storing only the hash prevents a leaked database from being
// replayed against reset or verification endpoints.
func HashActionToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
