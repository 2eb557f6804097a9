package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConflictError_MatchesAlreadyExists(t *testing.T) {
	err := fmt.Errorf("create work: %w", &ConflictError{Table: "works", Key: "OL1W"})

	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.NotErrorIs(t, err, ErrNotFound)

	var conflict *ConflictError
	assert.True(t, errors.As(err, &conflict))
	assert.Equal(t, "OL1W", conflict.Key)
	assert.Contains(t, err.Error(), "works")
}
