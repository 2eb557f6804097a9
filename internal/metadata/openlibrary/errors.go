package openlibrary

import (
	"errors"
	"fmt"

	"github.com/listenupapp/stagehand/internal/metadata"
)

// Sentinel errors for Open Library operations. ErrNotFound and ErrInvalidKey
// wrap metadata.ErrNotFound; everything else is transient.
var (
	ErrNotFound    = fmt.Errorf("openlibrary: %w", metadata.ErrNotFound)
	ErrInvalidKey  = fmt.Errorf("openlibrary: invalid key: %w", metadata.ErrNotFound)
	ErrRateLimited = errors.New("openlibrary: rate limited by server")
	ErrServer      = errors.New("openlibrary: server error")
	ErrTooManyHops = errors.New("openlibrary: redirect chain too long")
)

// Error wraps an underlying error with operation context.
type Error struct {
	Op  string // "fetchWork", "fetchAuthor", "search"
	Key string // external key or search term, if applicable
	Err error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("openlibrary %s [%s]: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("openlibrary %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapError(op, key string, err error) error {
	return &Error{Op: op, Key: key, Err: err}
}
