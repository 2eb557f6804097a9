package store

import (
	"context"

	"github.com/listenupapp/stagehand/internal/domain"
)

// SearchIndexer keeps the search index in step with store writes without the
// store depending on the search implementation.
type SearchIndexer interface {
	IndexWork(ctx context.Context, w *domain.Work) error
	DeleteWorks(ctx context.Context, ids []string) error
}

// NoopSearchIndexer discards all updates.
type NoopSearchIndexer struct{}

// IndexWork is a no-op.
func (NoopSearchIndexer) IndexWork(context.Context, *domain.Work) error { return nil }

// DeleteWorks is a no-op.
func (NoopSearchIndexer) DeleteWorks(context.Context, []string) error { return nil }

// NewNoopSearchIndexer returns an indexer that discards all updates.
func NewNoopSearchIndexer() SearchIndexer {
	return NoopSearchIndexer{}
}
