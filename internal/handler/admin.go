package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/finbook/finbook-api/internal/model"
	"github.com/finbook/finbook-api/internal/repository"
)

// AdminUserStore is the slice of the user repository the admin endpoints
// need.
type AdminUserStore interface {
	List(ctx context.Context, limit, offset int) ([]model.User, error)
	HardDelete(ctx context.Context, id uint64) error
}

// AdminHandler serves the administrative user endpoints.  Routes using it
// sit behind RequireRole("ADMIN") plus the relevant permission guard.
type AdminHandler struct {
	Logger *zap.Logger
	Users  AdminUserStore
}

func NewAdminHandler(logger *zap.Logger, users AdminUserStore) *AdminHandler {
	return &AdminHandler{Logger: logger, Users: users}
}

// ListUsers returns a page of non-deleted users.  Query params: limit
// (default 20, max 100) and offset.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, err := h.Users.List(ctx, limit, offset)
	if err != nil {
		return err
	}
	out := make([]userResp, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResp(u))
	}
	return c.JSON(http.StatusOK, echo.Map{"users": out, "count": len(out)})
}

// DeleteUser physically removes a user.  Soft delete is the normal
// account-deletion path; this endpoint exists for explicit administrative
// removal only.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	switch err := h.Users.HardDelete(ctx, id); err {
	case nil:
		h.Logger.Info("user hard-deleted", zap.Uint64("user_id", id))
		return c.JSON(http.StatusOK, echo.Map{"message": "user deleted"})
	case repository.ErrNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	default:
		return err
	}
}
