// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates that input failed domain validation rules.
var ErrValidation = errors.New("validation error")

// ErrForbidden indicates the acting user may not perform the mutation.
var ErrForbidden = errors.New("forbidden")

// ErrInvalidArgument indicates a malformed or out-of-range request value.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrInvalidState indicates the target is not in a state that allows the operation.
var ErrInvalidState = errors.New("invalid state")
