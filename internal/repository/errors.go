// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios and map
// them onto the HTTP error taxonomy without inspecting driver errors.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrEmailExists is returned when a registration or update would reuse an
// email address already held by a non-deleted user. Handlers translate
// this into an HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")

// ErrUsernameExists is the username counterpart of ErrEmailExists.
var ErrUsernameExists = errors.New("username already exists")

// ErrNotFound is returned when a lookup matches no active, non-deleted
// record. Handlers translate this into 404, or into a generic 401 on
// credential paths where account existence must not leak.
var ErrNotFound = errors.New("not found")

// ErrTokenInvalid is returned when a one-time action token is missing,
// expired, or does not match the stored hash. Handlers translate this
// into a 400 with a generic invalid-or-expired message.
var ErrTokenInvalid = errors.New("invalid or expired token")

// duplicateError maps a MySQL duplicate-key violation (1062) onto the
// matching sentinel by inspecting which unique key fired. Any other error
// passes through unchanged.
func duplicateError(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != 1062 {
		return err
	}
	if strings.Contains(me.Message, "uq_users_username") {
		return ErrUsernameExists
	}
	return ErrEmailExists
}
