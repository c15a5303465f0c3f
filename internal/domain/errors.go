// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates malformed or out-of-range input.
var ErrValidation = errors.New("validation failed")

// ErrInvalidTransition indicates a state change that is not allowed from the
// entity's current status. Callers must not retry; the attempt produces no
// mutation and no audit entry.
var ErrInvalidTransition = errors.New("invalid state transition")
