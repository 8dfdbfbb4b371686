// Package repository implements the storage layer on *sql.DB.  Sentinel
// errors let handlers map failure scenarios to HTTP statuses without
// inspecting driver internals.
package repository

import "errors"

// ErrNotFound is returned when a row lookup matches nothing.  Handlers
// translate it into a 404.
var ErrNotFound = errors.New("no document found with that id")

// ErrEmailExists is returned when a user insert violates the unique email
// index.  Handlers translate it into a 409.
var ErrEmailExists = errors.New("email already exists")

// ErrDuplicate is returned for other unique-index violations, e.g. a second
// review for the same (tour, user) pair.
var ErrDuplicate = errors.New("duplicate entry")
