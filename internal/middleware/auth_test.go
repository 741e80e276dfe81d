package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbook/finbook-api/internal/utils"
)

func newIssuer(t *testing.T) *utils.TokenIssuer {
	t.Helper()
	ti, err := utils.NewTokenIssuer("access-secret", "refresh-secret", time.Hour, 7*24*time.Hour)
	require.NoError(t, err)
	return ti
}

func runChain(e *echo.Echo, header string, mws ...echo.MiddlewareFunc) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	h := echo.HandlerFunc(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	_ = h(c)
	return rec
}

func TestAuthenticate(t *testing.T) {
	ti := newIssuer(t)
	e := echo.New()
	mw := Authenticate(ti)

	token, _, err := ti.IssueAccess(5, "a@x.com", []string{"USER"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := runChain(e, tt.header, mw)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAuthenticateRejectsRefreshToken(t *testing.T) {
	ti := newIssuer(t)
	e := echo.New()
	refresh, _, err := ti.IssueRefresh(5)
	require.NoError(t, err)
	rec := runChain(e, "Bearer "+refresh, Authenticate(ti))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	ti := newIssuer(t)
	e := echo.New()

	admin, _, err := ti.IssueAccess(1, "a@x.com", []string{"ADMIN"})
	require.NoError(t, err)
	user, _, err := ti.IssueAccess(2, "u@x.com", []string{"USER"})
	require.NoError(t, err)

	rec := runChain(e, "Bearer "+admin, Authenticate(ti), RequireRole("ADMIN"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = runChain(e, "Bearer "+user, Authenticate(ti), RequireRole("ADMIN"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Any of several roles suffices.
	rec = runChain(e, "Bearer "+user, Authenticate(ti), RequireRole("ADMIN", "USER"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

type fakePerms struct {
	perms map[string]struct{}
	err   error
}

func (f *fakePerms) PermissionsForUser(ctx context.Context, userID uint64) (map[string]struct{}, error) {
	return f.perms, f.err
}

func TestRequirePermissions(t *testing.T) {
	ti := newIssuer(t)
	e := echo.New()
	token, _, err := ti.IssueAccess(1, "a@x.com", []string{"ADMIN"})
	require.NoError(t, err)

	grants := func(names ...string) map[string]struct{} {
		m := map[string]struct{}{}
		for _, n := range names {
			m[n] = struct{}{}
		}
		return m
	}

	// Every permission except the required one: denied.
	src := &fakePerms{perms: grants("read:users", "create:users")}
	rec := runChain(e, "Bearer "+token, Authenticate(ti), RequirePermissions(src, "delete:users"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Union covers the requirement alongside others: allowed.
	src = &fakePerms{perms: grants("read:users", "delete:users")}
	rec = runChain(e, "Bearer "+token, Authenticate(ti), RequirePermissions(src, "delete:users"))
	assert.Equal(t, http.StatusOK, rec.Code)

	// All listed permissions must be present.
	src = &fakePerms{perms: grants("read:users")}
	rec = runChain(e, "Bearer "+token, Authenticate(ti), RequirePermissions(src, "read:users", "delete:users"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Lookup failure fails closed.
	src = &fakePerms{err: errors.New("db down")}
	rec = runChain(e, "Bearer "+token, Authenticate(ti), RequirePermissions(src, "read:users"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
