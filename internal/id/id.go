// Package id generates identifiers for catalog rows and pending actions.
package id

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for catalog entity IDs.
const (
	PrefixWork        = "work"
	PrefixContributor = "ctb"
	PrefixTag         = "tag"
	PrefixCommitment  = "cmt"
)

// Generate creates a prefixed NanoID, e.g. "work-V1StGXR8_Z5jdHi6B-myT".
// It fails only when the system entropy source does.
func Generate(prefix string) (string, error) {
	n, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + n, nil
}

// MustGenerate is like Generate but panics on failure.
func MustGenerate(prefix string) string {
	v, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return v
}

// NewActionID returns a random UUID for a pending action.
// Action IDs are compared on Commit and Rollback, so they must never repeat.
func NewActionID() string {
	return uuid.NewString()
}
