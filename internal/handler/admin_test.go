package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finbook/finbook-api/internal/httperr"
	"github.com/finbook/finbook-api/internal/model"
	"github.com/finbook/finbook-api/internal/repository"
)

type adminMem struct {
	users map[uint64]model.User
}

func (a *adminMem) List(_ context.Context, limit, offset int) ([]model.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []model.User
	for id := uint64(1); id <= uint64(len(a.users)); id++ {
		if u, ok := a.users[id]; ok && !u.IsDeleted {
			out = append(out, u)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (a *adminMem) HardDelete(_ context.Context, id uint64) error {
	if _, ok := a.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(a.users, id)
	return nil
}

func newAdminTest() (*AdminHandler, *adminMem) {
	store := &adminMem{users: map[uint64]model.User{}}
	for i := uint64(1); i <= 3; i++ {
		store.users[i] = model.User{ID: i, Username: "u", Email: "u@x.com",
			IsActive: true, CreatedAt: time.Now().UTC()}
	}
	return NewAdminHandler(zap.NewNop(), store), store
}

func adminDo(method, target string, h echo.HandlerFunc) *httptest.ResponseRecorder {
	e := echo.New()
	e.HTTPErrorHandler = httperr.NewHandler(zap.NewNop(), false)
	e.Add(method, "/admin/users/:id", h)
	e.Add(method, "/admin/users", h)
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestListUsers(t *testing.T) {
	h, _ := newAdminTest()

	rec := adminDo(http.MethodGet, "/admin/users", h.ListUsers)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":3`)

	rec = adminDo(http.MethodGet, "/admin/users?limit=2&offset=2", h.ListUsers)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
}

func TestDeleteUser(t *testing.T) {
	h, store := newAdminTest()

	rec := adminDo(http.MethodDelete, "/admin/users/2", h.DeleteUser)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, store.users, uint64(2))

	rec = adminDo(http.MethodDelete, "/admin/users/2", h.DeleteUser)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = adminDo(http.MethodDelete, "/admin/users/zero", h.DeleteUser)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
