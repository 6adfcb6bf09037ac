// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios.  For
// example, ErrAccountExists signals a duplicate registration, while
// ErrAccountNotFound indicates that no account has the given address.
package repository

import "errors"

// ErrAccountExists is returned when an account with the same address is
// already stored.  Handlers should translate this into an HTTP 409
// response.
var ErrAccountExists = errors.New("account already exists")

// ErrAccountNotFound is returned when no account matches the requested
// address.  Login handlers should report it as invalid credentials.
var ErrAccountNotFound = errors.New("account not found")
