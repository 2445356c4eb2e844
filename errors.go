package authkit

import "errors"

var (
	// ErrNotFound is returned by store implementations when a user or
	// refresh token does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateUser is returned by [UserStore.Insert] when the username
	// or email is already taken. The service maps it to a Conflict result
	// without revealing which field collided.
	ErrDuplicateUser = errors.New("username or email already exists")
)
