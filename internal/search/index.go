package search

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/listenupapp/stagehand/internal/domain"
	"github.com/listenupapp/stagehand/internal/store"
)

// mappingVersion is bumped whenever the mapping changes. A mismatch on
// startup drops the index so the caller can rebuild it.
const mappingVersion = "1"

const batchSize = 500

// Index wraps a Bleve index of works. It implements store.SearchIndexer.
//
// All methods are safe for concurrent use. The mutex guards the index
// handle, which Rebuild replaces.
type Index struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex

	// fresh is true when the index was created empty on open.
	fresh bool
}

var _ store.SearchIndexer = (*Index)(nil)

// Options configures the index.
type Options struct {
	DataPath string
	Logger   *slog.Logger // discards when nil

	// InMemory builds a non-persistent index, for tests and tooling.
	InMemory bool
}

// NewIndex opens the index under opts.DataPath, creating it when missing.
// An index that is unreadable or was built with an older mapping is
// removed and recreated empty; NeedsRebuild then reports true.
func NewIndex(opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if opts.InMemory {
		index, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create memory index: %w", err)
		}
		return &Index{index: index, logger: logger, fresh: true}, nil
	}

	if err := os.MkdirAll(opts.DataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	indexPath := filepath.Join(opts.DataPath, "works.bleve")
	versionPath := filepath.Join(opts.DataPath, "works.version")

	var (
		index        bleve.Index
		err          error
		needsRebuild bool
	)

	_, statErr := os.Stat(indexPath)
	indexExists := statErr == nil

	if indexExists {
		existing, readErr := os.ReadFile(versionPath) //#nosec G304 -- path under the data dir
		switch {
		case readErr != nil:
			logger.Info("search index has no version file, rebuilding", "version", mappingVersion)
			needsRebuild = true
		case string(existing) != mappingVersion:
			logger.Info("search index mapping changed, rebuilding",
				"old_version", string(existing),
				"new_version", mappingVersion,
			)
			needsRebuild = true
		}
	}

	if indexExists && !needsRebuild {
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Warn("failed to open search index, recreating", "path", indexPath, "error", err)
			needsRebuild = true
		}
	}

	if needsRebuild {
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("remove old index: %w", err)
		}
		index = nil
	}

	fresh := false
	if index == nil {
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o600); err != nil {
			logger.Warn("failed to write search version file", "error", err)
		}
		fresh = true
		logger.Info("created search index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened search index", "path", indexPath)
	}

	return &Index{index: index, path: indexPath, logger: logger, fresh: fresh}, nil
}

// NeedsRebuild reports whether the index was created empty on open and
// should be filled from the store.
func (x *Index) NeedsRebuild() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.fresh
}

// Close releases the index.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.index.Close()
}

// IndexWork adds or replaces w in the index.
func (x *Index) IndexWork(_ context.Context, w *domain.Work) error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	doc := NewWorkDocument(w)
	return x.index.Index(doc.ID, doc.ToMap())
}

// IndexWorks indexes docs in batches.
func (x *Index) IndexWorks(docs []*WorkDocument) error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.indexBatches(x.index, docs)
}

func (x *Index) indexBatches(index bleve.Index, docs []*WorkDocument) error {
	for i := 0; i < len(docs); i += batchSize {
		end := min(i+batchSize, len(docs))
		batch := index.NewBatch()
		for _, doc := range docs[i:end] {
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}
		if err := index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// DeleteWorks removes works from the index. Unknown IDs are ignored.
func (x *Index) DeleteWorks(_ context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	batch := x.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return x.index.Batch(batch)
}

// DocumentCount returns the number of indexed works.
func (x *Index) DocumentCount() (uint64, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.index.DocCount()
}

// Rebuild replaces the index contents with works. It holds the write lock
// for the duration, so searches wait.
func (x *Index) Rebuild(ctx context.Context, works iter.Seq2[*domain.Work, error]) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	var fresh bleve.Index
	var err error
	if x.path == "" {
		fresh, err = bleve.NewMemOnly(buildIndexMapping())
	} else {
		if err := x.index.Close(); err != nil {
			return 0, fmt.Errorf("close index: %w", err)
		}
		if err := os.RemoveAll(x.path); err != nil {
			return 0, fmt.Errorf("remove index: %w", err)
		}
		fresh, err = bleve.New(x.path, buildIndexMapping())
	}
	if err != nil {
		return 0, fmt.Errorf("create index: %w", err)
	}
	if x.path == "" {
		_ = x.index.Close()
	}
	x.index = fresh

	docs := make([]*WorkDocument, 0, batchSize)
	total := 0
	for w, err := range works {
		if err != nil {
			return total, fmt.Errorf("read works: %w", err)
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		docs = append(docs, NewWorkDocument(w))
		if len(docs) == batchSize {
			if err := x.indexBatches(fresh, docs); err != nil {
				return total, err
			}
			total += len(docs)
			docs = docs[:0]
		}
	}
	if err := x.indexBatches(fresh, docs); err != nil {
		return total, err
	}
	total += len(docs)
	x.fresh = false

	x.logger.Info("rebuilt search index", "works", total)
	return total, nil
}
