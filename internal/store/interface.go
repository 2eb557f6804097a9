// Package store defines the catalog persistence contract used by the saga,
// engagement checks and search.
package store

import (
	"context"
	"iter"
	"time"

	"github.com/listenupapp/stagehand/internal/domain"
)

// Store is the catalog entity store. Every method is safe for concurrent use.
type Store interface {
	Close() error
	SetSearchIndexer(indexer SearchIndexer)

	// Works
	GetWork(ctx context.Context, id string) (*domain.Work, error)
	FindWorkByExternalKey(ctx context.Context, key string) (*domain.Work, error)
	FindWorksByExternalKeys(ctx context.Context, keys []string) (map[string]*domain.Work, error)
	GetWorksByIDs(ctx context.Context, ids []string) ([]*domain.Work, error)
	ListWorks(ctx context.Context) iter.Seq2[*domain.Work, error]
	CreateWorkGraph(ctx context.Context, g *WorkGraph) (*WorkGraphResult, error)

	// Contributors
	FindContributorByExternalKey(ctx context.Context, key string) (*domain.Contributor, error)

	// Commitments
	CreateCommitment(ctx context.Context, c *domain.Commitment) error
	CountCommitments(ctx context.Context, workID string) (int, error)

	// Reclamation. Both deletes are conditional and evaluated atomically by
	// the store: a row with a live commitment or cross-reference survives.
	DeleteIfUnengaged(ctx context.Context, kind domain.EntityKind, id string) (bool, error)
	SweepProvisional(ctx context.Context, kind domain.EntityKind, cutoff time.Time, keep []string) ([]string, error)
	ListProvisional(ctx context.Context, kind domain.EntityKind, cutoff time.Time) ([]ProvisionalRow, error)
}

// WorkGraph is a work plus the contributors and tags it links to, written in
// a single transaction.
type WorkGraph struct {
	// Work must carry an ID. Its external key is the claim.
	Work *domain.Work

	// Contributors are inserted when no row with the same external key
	// exists; otherwise the existing row is linked.
	Contributors []*domain.Contributor

	// Tags are found or created as confirmed.
	Tags []TagInput
}

// TagInput names a tag to link.
type TagInput struct {
	Slug string
	Name string
}

// WorkGraphResult is what CreateWorkGraph wrote.
type WorkGraphResult struct {
	Work *domain.Work

	// InsertedContributorIDs are contributors this call created, as opposed
	// to rows that already existed.
	InsertedContributorIDs []string
}

// ProvisionalRow summarizes a provisional entity for inspection.
type ProvisionalRow struct {
	Kind        domain.EntityKind `json:"kind"`
	ID          string            `json:"id"`
	ExternalKey string            `json:"external_key"`
	Label       string            `json:"label"`
	ImportedBy  string            `json:"imported_by"`
	ImportedAt  time.Time         `json:"imported_at"`
	References  int               `json:"references"`
}
