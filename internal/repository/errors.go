// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// inspecting driver-specific errors.
package repository

import "errors"

// ErrNotFound is returned when a requested row does not exist. Handlers
// translate this into an HTTP 404 (or 401 for credential lookups, so a
// missing account is indistinguishable from a bad password).
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when creating a user with an email that is
// already registered. Handlers translate this into an HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")
