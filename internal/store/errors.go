package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the acting user may not touch the record.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a mutation would duplicate existing state,
// such as joining a team the user already belongs to.
var ErrConflict = errors.New("conflict")

// ErrInvalid is returned for malformed or missing input.
var ErrInvalid = errors.New("invalid input")
