package handler

import (
	"context"  // provides context with cancellation for DB and cache calls
	"net/http" // HTTP status codes and cookie primitives
	"strings"  // string normalization for logins
	"time"     // timeouts and cookie lifetimes

	"github.com/go-playground/validator/v10" // request DTO validation
	"github.com/labstack/echo/v4"            // Echo framework for HTTP routing
	"go.uber.org/zap"                        // structured logging

	"github.com/finbook/finbook-api/internal/config"
	"github.com/finbook/finbook-api/internal/httperr"
	"github.com/finbook/finbook-api/internal/metrics"
	"github.com/finbook/finbook-api/internal/middleware"
	"github.com/finbook/finbook-api/internal/model"
	"github.com/finbook/finbook-api/internal/queue"
	"github.com/finbook/finbook-api/internal/repository"
	"github.com/finbook/finbook-api/internal/utils"
)

// DefaultRole is attached to every new registration.
const DefaultRole = "USER"

// RefreshCookieName holds the rotated refresh token between calls.
const RefreshCookieName = "refresh_token"

// Stores the auth flow depends on.  They are satisfied by the repository
// types; the handler holds interfaces so the flow can be tested against
// fakes without a database or cache.
type UserStore interface {
	Create(ctx context.Context, username, email, passwordHash, firstName, lastName, defaultRole string) (uint64, error)
	GetByLogin(ctx context.Context, login string) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UpdatePassword(ctx context.Context, id uint64, passwordHash string) error
	MarkEmailVerified(ctx context.Context, id uint64) error
}

type RoleStore interface {
	RolesForUser(ctx context.Context, userID uint64) ([]string, error)
}

type ActionTokenStore interface {
	Upsert(ctx context.Context, userID uint64, purpose, tokenHash string, expiresAt time.Time) error
	Consume(ctx context.Context, userID uint64, purpose, tokenHash string) error
}

type SessionStore interface {
	StoreRefresh(ctx context.Context, userID uint64, token string, ttl time.Duration) error
	GetRefresh(ctx context.Context, userID uint64) (string, error)
	DeleteRefresh(ctx context.Context, userID uint64) error
	Degraded() bool
}

type MailPublisher interface {
	Publish(ctx context.Context, event queue.MailEvent) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Logger   *zap.Logger
	Hasher   *utils.Hasher
	Issuer   *utils.TokenIssuer
	Users    UserStore
	Roles    RoleStore
	Tokens   ActionTokenStore
	Sessions SessionStore
	Mail     MailPublisher
	validate *validator.Validate
}

func NewAuthHandler(cfg config.Config, logger *zap.Logger, hasher *utils.Hasher, issuer *utils.TokenIssuer,
	users UserStore, roles RoleStore, tokens ActionTokenStore, sessions SessionStore, mail MailPublisher) *AuthHandler {
	return &AuthHandler{
		Cfg: cfg, Logger: logger, Hasher: hasher, Issuer: issuer,
		Users: users, Roles: roles, Tokens: tokens, Sessions: sessions, Mail: mail,
		validate: validator.New(),
	}
}

// ----- DTOs -----

type registerReq struct {
	Username  string `json:"username" validate:"required,min=3,max=32,alphanum"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
	FirstName string `json:"firstName" validate:"omitempty,max=64"`
	LastName  string `json:"lastName" validate:"omitempty,max=64"`
}
type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}
type resetRequestReq struct {
	Email string `json:"email" validate:"required,email"`
}
type resetPasswordReq struct {
	UserID      uint64 `json:"userId" validate:"required"`
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=128"`
}
type verifyEmailReq struct {
	UserID uint64 `json:"userId" validate:"required"`
	Token  string `json:"token" validate:"required"`
}

type userResp struct {
	ID            uint64    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FirstName     string    `json:"firstName,omitempty"`
	LastName      string    `json:"lastName,omitempty"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toUserResp(u model.User) userResp {
	return userResp{
		ID: u.ID, Username: u.Username, Email: u.Email,
		FirstName: u.FirstName, LastName: u.LastName,
		EmailVerified: u.EmailVerified, CreatedAt: u.CreatedAt,
	}
}

// bindAndValidate decodes the body and runs struct validation, translating
// failures into field-level 400s.
func (h *AuthHandler) bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return &httperr.Error{Status: http.StatusBadRequest, Message: "invalid body"}
	}
	if err := h.validate.Struct(req); err != nil {
		fields := map[string]string{}
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields[strings.ToLower(fe.Field())] = fe.Tag()
			}
		}
		return httperr.Validation(fields)
	}
	return nil
}

// passwordOK enforces the minimal strength rule: at least one letter and
// one digit.  Length is already covered by validation tags.
func passwordOK(pw string) bool {
	var letter, digit bool
	for _, r := range pw {
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			letter = true
		}
	}
	return letter && digit
}

// Register creates the user row and its default role link in one atomic
// unit and returns the created profile without issuing tokens.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := h.bindAndValidate(c, &req); err != nil {
		return err
	}
	if !passwordOK(req.Password) {
		return httperr.Validation(map[string]string{"password": "must contain a letter and a digit"})
	}

	hash, err := h.Hasher.Hash(req.Password)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Username, req.Email, hash, req.FirstName, req.LastName, DefaultRole)
	switch err {
	case nil:
	case repository.ErrEmailExists:
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	case repository.ErrUsernameExists:
		return c.JSON(http.StatusConflict, echo.Map{"error": "username already exists"})
	default:
		return err
	}
	metrics.Registrations.Inc()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return err
	}

	// Kick off email verification out-of-band.  Failures here must not
	// fail the registration.
	h.dispatchActionToken(ctx, u, model.PurposeEmailVerification)

	return c.JSON(http.StatusCreated, echo.Map{"user": toUserResp(u)})
}

// Login verifies credentials and hands out an access token plus a refresh
// cookie.  The outward failure is always the same generic 401 whether the
// user is missing, inactive, or the password mismatched.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := h.bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByLogin(ctx, req.Email)
	if err == repository.ErrNotFound {
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		return err
	}
	ok, err := h.Hasher.Verify(u.PasswordHash, req.Password)
	if err != nil {
		// Malformed stored hash is an internal problem, not a caller one,
		// but the response stays the generic 401.
		h.Logger.Error("stored password hash unreadable", zap.Uint64("user_id", u.ID), zap.Error(err))
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if !ok {
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	// Opportunistic rehash when cost parameters moved.  Best-effort only.
	if newHash, changed := h.Hasher.RehashIfNeeded(u.PasswordHash, req.Password); changed {
		if err := h.Users.UpdatePassword(ctx, u.ID, newHash); err != nil {
			h.Logger.Warn("password rehash not persisted", zap.Uint64("user_id", u.ID), zap.Error(err))
		}
	}

	if u.TwoFactorEnabled {
		// Identity confirmed but no tokens until the second factor clears.
		metrics.LoginAttempts.WithLabelValues("two_factor").Inc()
		return c.JSON(http.StatusAccepted, echo.Map{"two_factor_required": true})
	}

	roles, err := h.Roles.RolesForUser(ctx, u.ID)
	if err != nil {
		return err
	}

	access, _, err := h.Issuer.IssueAccess(u.ID, u.Email, roles)
	if err != nil {
		return err
	}
	refresh, _, err := h.Issuer.IssueRefresh(u.ID)
	if err != nil {
		return err
	}
	// Storing the refresh token overwrites any prior session.  A cache
	// failure degrades revocation tracking but must not fail the login.
	if err := h.Sessions.StoreRefresh(ctx, u.ID, refresh, h.Issuer.RefreshTTL()); err != nil {
		h.Logger.Warn("refresh session not stored, revocation is best-effort",
			zap.Uint64("user_id", u.ID), zap.Error(err))
	}
	h.setRefreshCookie(c, refresh)

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	return c.JSON(http.StatusOK, echo.Map{
		"accessToken": access,
		"user":        toUserResp(u),
	})
}

// Refresh rotates the token pair.  The cookie's token must verify and
// match the cached value for its subject; anything else is a uniform 401.
func (h *AuthHandler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}
	claims := h.Issuer.VerifyRefresh(cookie.Value)
	if claims == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cached, err := h.Sessions.GetRefresh(ctx, claims.UserID)
	if err != nil || cached != cookie.Value {
		// Missing, mismatched (rotated away), or cache unreachable: with
		// no trusted record we fail closed.
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}

	u, err := h.Users.GetByID(ctx, claims.UserID)
	if err == repository.ErrNotFound {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}
	if err != nil {
		return err
	}
	if !u.IsActive {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}

	roles, err := h.Roles.RolesForUser(ctx, u.ID)
	if err != nil {
		return err
	}
	access, _, err := h.Issuer.IssueAccess(u.ID, u.Email, roles)
	if err != nil {
		return err
	}
	refresh, _, err := h.Issuer.IssueRefresh(u.ID)
	if err != nil {
		return err
	}
	// Rotation on every refresh: the overwrite invalidates the token the
	// caller just used.
	if err := h.Sessions.StoreRefresh(ctx, u.ID, refresh, h.Issuer.RefreshTTL()); err != nil {
		h.Logger.Warn("rotated refresh session not stored",
			zap.Uint64("user_id", u.ID), zap.Error(err))
	}
	h.setRefreshCookie(c, refresh)

	return c.JSON(http.StatusOK, echo.Map{"accessToken": access})
}

// Logout deletes the caller's cached refresh token and clears the cookie.
// Idempotent: logging out twice is not an error, and the access token
// keeps working until its own expiry (logout only revokes the refresh
// path).
func (h *AuthHandler) Logout(c echo.Context) error {
	claims := middleware.CurrentClaims(c)
	if claims == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Sessions.DeleteRefresh(ctx, claims.UserID); err != nil {
		h.Logger.Warn("refresh session delete failed", zap.Uint64("user_id", claims.UserID), zap.Error(err))
	}
	h.clearRefreshCookie(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// RequestPasswordReset responds identically whether or not the email maps
// to an account; account existence never leaks through this endpoint.
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req resetRequestReq
	if err := h.bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if u, err := h.Users.GetByEmail(ctx, req.Email); err == nil {
		h.dispatchActionToken(ctx, u, model.PurposePasswordReset)
	} else if err != repository.ErrNotFound {
		h.Logger.Error("password reset lookup failed", zap.Error(err))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "if the account exists, a reset link has been sent",
	})
}

// ResetPassword consumes a one-time token, replaces the password hash and
// revokes the user's refresh session so every device must log in again.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := h.bindAndValidate(c, &req); err != nil {
		return err
	}
	if !passwordOK(req.NewPassword) {
		return httperr.Validation(map[string]string{"newpassword": "must contain a letter and a digit"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err := h.Tokens.Consume(ctx, req.UserID, model.PurposePasswordReset, utils.HashActionToken(req.Token))
	if err == repository.ErrTokenInvalid {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
	}
	if err != nil {
		return err
	}

	hash, err := h.Hasher.Hash(req.NewPassword)
	if err != nil {
		return err
	}
	if err := h.Users.UpdatePassword(ctx, req.UserID, hash); err != nil {
		return err
	}
	// Force re-login everywhere.  Best-effort under cache degradation.
	if err := h.Sessions.DeleteRefresh(ctx, req.UserID); err != nil {
		h.Logger.Warn("refresh session not revoked after password reset",
			zap.Uint64("user_id", req.UserID), zap.Error(err))
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

// VerifyEmail consumes a verification token and marks the account
// verified.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req verifyEmailReq
	if err := h.bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err := h.Tokens.Consume(ctx, req.UserID, model.PurposeEmailVerification, utils.HashActionToken(req.Token))
	if err == repository.ErrTokenInvalid {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
	}
	if err != nil {
		return err
	}
	if err := h.Users.MarkEmailVerified(ctx, req.UserID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "email verified"})
}

// Profile returns the authenticated caller's account.
func (h *AuthHandler) Profile(c echo.Context) error {
	claims := middleware.CurrentClaims(c)
	if claims == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	u, err := h.Users.GetByID(ctx, claims.UserID)
	if err == repository.ErrNotFound {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"user": toUserResp(u)})
}

// dispatchActionToken upserts a hashed one-time token and publishes the
// raw value for out-of-band delivery.  Non-critical: every failure is
// logged and swallowed so the surrounding operation keeps its uniform
// response.
func (h *AuthHandler) dispatchActionToken(ctx context.Context, u model.User, purpose string) {
	raw, err := utils.NewActionToken()
	if err != nil {
		h.Logger.Error("action token generation failed", zap.String("purpose", purpose), zap.Error(err))
		return
	}
	expires := time.Now().UTC().Add(h.Cfg.ActionTokenTTL)
	if err := h.Tokens.Upsert(ctx, u.ID, purpose, utils.HashActionToken(raw), expires); err != nil {
		h.Logger.Error("action token not stored", zap.String("purpose", purpose),
			zap.Uint64("user_id", u.ID), zap.Error(err))
		return
	}
	_ = h.Mail.Publish(ctx, queue.MailEvent{
		UserID:    u.ID,
		To:        u.Email,
		Purpose:   purpose,
		Token:     raw,
		ExpiresAt: expires.Format(time.RFC3339),
	})
}

// ----- refresh cookie -----

func (h *AuthHandler) setRefreshCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     "/auth",
		MaxAge:   int(h.Issuer.RefreshTTL() / time.Second),
		HttpOnly: true,
		Secure:   h.Cfg.Env == "prod",
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Cfg.Env == "prod",
		SameSite: http.SameSiteStrictMode,
	})
}
