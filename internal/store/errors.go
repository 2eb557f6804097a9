package store

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Store implementations.
var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	ErrInvalidInput  = errors.New("store: invalid input")
)

// ConflictError reports a uniqueness violation on a natural key. It matches
// ErrAlreadyExists under errors.Is.
type ConflictError struct {
	Table string
	Key   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("store: %s with key %q already exists", e.Table, e.Key)
}

// Is lets errors.Is(err, ErrAlreadyExists) match.
func (e *ConflictError) Is(target error) bool {
	return target == ErrAlreadyExists
}
