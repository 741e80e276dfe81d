package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestDuplicateErrorMapsUniqueKeys(t *testing.T) {
	email := &mysql.MySQLError{Number: 1062,
		Message: "Duplicate entry 'a@x.com-0' for key 'users.uq_users_email'"}
	assert.ErrorIs(t, duplicateError(email), ErrEmailExists)

	username := &mysql.MySQLError{Number: 1062,
		Message: "Duplicate entry 'alice-0' for key 'users.uq_users_username'"}
	assert.ErrorIs(t, duplicateError(username), ErrUsernameExists)

	// Wrapped driver errors are still recognized.
	wrapped := fmt.Errorf("insert user: %w", username)
	assert.ErrorIs(t, duplicateError(wrapped), ErrUsernameExists)
}

func TestDuplicateErrorPassesOthersThrough(t *testing.T) {
	deadlock := &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}
	assert.Equal(t, deadlock, duplicateError(deadlock))

	plain := errors.New("connection reset")
	assert.Equal(t, plain, duplicateError(plain))
}
