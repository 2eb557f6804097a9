// Package metadata defines the read-only contract for external bibliographic
// catalogs. Implementations live in subpackages.
package metadata

import (
	"context"
	"errors"

	"github.com/listenupapp/stagehand/internal/domain"
)

// ErrNotFound is wrapped by every catalog implementation when an external
// key does not resolve. Any other error from a Catalog is transient.
var ErrNotFound = errors.New("metadata: not found")

// IsNotFound reports whether err means the catalog has no such record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// WorkRecord is canonical work metadata from the catalog.
type WorkRecord struct {
	Key             string
	Title           string
	Subtitle        string
	Description     string // Markdown
	Subjects        []string
	ContributorKeys []string
	FirstPublished  string
}

// ContributorRecord is canonical contributor metadata from the catalog.
type ContributorRecord struct {
	Key       string
	Name      string
	Bio       string // plain text
	BirthDate string
	DeathDate string
}

// SearchHit is one result of a catalog search.
type SearchHit struct {
	Key              string
	Title            string
	ContributorNames []string
	Year             int // zero when unknown
}

// Catalog resolves external keys to metadata.
type Catalog interface {
	FetchWork(ctx context.Context, key string) (*WorkRecord, error)
	FetchContributor(ctx context.Context, key string) (*ContributorRecord, error)
	Search(ctx context.Context, term string, mode domain.SearchMode, limit int) ([]SearchHit, error)
}
