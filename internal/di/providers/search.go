package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/listenupapp/stagehand/internal/config"
	"github.com/listenupapp/stagehand/internal/logger"
	"github.com/listenupapp/stagehand/internal/metrics"
	"github.com/listenupapp/stagehand/internal/search"
	"github.com/listenupapp/stagehand/internal/staging"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the bleve index and wires it to the store so
// every imported or deleted work is reflected in it.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	index, err := search.NewIndex(search.Options{
		DataPath: cfg.Metadata.SearchPath(),
		Logger:   log.Component("search"),
	})
	if err != nil {
		return nil, err
	}

	storeHandle.SetSearchIndexer(index)

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{Index: index}, nil
}

// ProvideSearchMerger provides the hybrid search merger.
func ProvideSearchMerger(i do.Injector) (*search.Merger, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	catalog := do.MustInvoke[*CatalogClientHandle](i)
	coordinator := do.MustInvoke[*staging.Coordinator](i)
	m := do.MustInvoke[*metrics.Metrics](i)

	return search.NewMerger(
		indexHandle.Index,
		storeHandle.Store,
		catalog.Client,
		coordinator.Importer(),
		m,
		search.MergerConfig{
			PageSize:          cfg.Search.PageSize,
			MaxExternal:       cfg.Search.MaxExternal,
			ImportConcurrency: cfg.Search.ImportConcurrency,
		},
		log.Component("search"),
	), nil
}

// RebuildSearchIndexIfNeeded repopulates the index from the catalog when it
// was just created or its mapping changed. Runs in the background; searches
// see partial local results until it finishes.
func RebuildSearchIndexIfNeeded(i do.Injector) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !indexHandle.NeedsRebuild() {
		return
	}

	log.Info("Search index is new, rebuilding from catalog")

	go func() {
		ctx := context.Background()
		count, err := indexHandle.Rebuild(ctx, storeHandle.ListWorks(ctx))
		if err != nil {
			log.Error("Search index rebuild failed", "error", err, "indexed", count)
			return
		}
		log.Info("Search index rebuild completed", "indexed", count)
	}()
}
