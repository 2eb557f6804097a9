package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/stagehand/internal/domain"
	"github.com/listenupapp/stagehand/internal/metadata"
	"github.com/listenupapp/stagehand/internal/metrics"
	"github.com/listenupapp/stagehand/internal/staging"
	"github.com/listenupapp/stagehand/internal/store/sqlite"
)

type stubCatalog struct {
	mu          sync.Mutex
	works       map[string]*metadata.WorkRecord
	hits        []metadata.SearchHit
	fetches     map[string]int
	searches    int
	searchLimit int
	searchErr   error
}

func newStubCatalog() *stubCatalog {
	return &stubCatalog{
		works:   make(map[string]*metadata.WorkRecord),
		fetches: make(map[string]int),
	}
}

func (c *stubCatalog) add(key, title string) {
	c.works[key] = &metadata.WorkRecord{Key: key, Title: title, Subjects: []string{"Science fiction"}}
	c.hits = append(c.hits, metadata.SearchHit{Key: key, Title: title})
}

func (c *stubCatalog) FetchWork(_ context.Context, key string) (*metadata.WorkRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetches[key]++
	rec, ok := c.works[key]
	if !ok {
		return nil, fmt.Errorf("work %s: %w", key, metadata.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (c *stubCatalog) FetchContributor(_ context.Context, key string) (*metadata.ContributorRecord, error) {
	return nil, fmt.Errorf("contributor %s: %w", key, metadata.ErrNotFound)
}

func (c *stubCatalog) Search(_ context.Context, _ string, _ domain.SearchMode, limit int) ([]metadata.SearchHit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searches++
	c.searchLimit = limit
	if c.searchErr != nil {
		return nil, c.searchErr
	}
	if len(c.hits) > limit {
		return c.hits[:limit], nil
	}
	return c.hits, nil
}

func (c *stubCatalog) searchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.searches
}

type mergerFixture struct {
	merger   *Merger
	store    *sqlite.Store
	catalog  *stubCatalog
	importer *staging.Importer
}

func newMergerFixture(t *testing.T) *mergerFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "catalog.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	index := setupTestIndex(t)
	st.SetSearchIndexer(index)

	catalog := newStubCatalog()
	catalog.add("OL1W", "Dune")
	catalog.add("OL2W", "Dune Messiah")
	catalog.add("OL3W", "Children of Dune")

	importer := staging.NewImporter(st, catalog, logger)
	merger := NewMerger(index, st, catalog, importer, metrics.New(), MergerConfig{PageSize: 20}, logger)

	return &mergerFixture{merger: merger, store: st, catalog: catalog, importer: importer}
}

// importLocal makes key a local work without going through search.
func (f *mergerFixture) importLocal(t *testing.T, key string) *domain.Work {
	t.Helper()
	res, err := f.importer.Import(context.Background(), staging.ImportRequest{
		ExternalKey: key,
		UserID:      "seed",
		Status:      domain.StatusConfirmed,
		Reason:      domain.ReasonSearch,
	})
	require.NoError(t, err)
	return res.Work
}

func titles(works []*domain.Work) []string {
	out := make([]string, len(works))
	for i, w := range works {
		out[i] = w.Title
	}
	return out
}

func TestMerger_LocalFirstThenImports(t *testing.T) {
	f := newMergerFixture(t)
	ctx := context.Background()
	f.importLocal(t, "OL1W")

	resp, err := f.merger.Search(ctx, Request{Term: "dune", UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Dune", "Dune Messiah", "Children of Dune"}, titles(resp.Works))
	assert.Equal(t, 1, resp.LocalCount)
	assert.Equal(t, 2, resp.ImportedCount)
	assert.Equal(t, 3, resp.Total)
	assert.False(t, resp.HasMore)
	assert.False(t, resp.Partial)
	assert.Equal(t, 20, f.catalog.searchLimit, "capped at the external maximum")

	for _, key := range []string{"OL2W", "OL3W"} {
		w, err := f.store.FindWorkByExternalKey(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusConfirmed, w.Status, key)
		assert.Equal(t, domain.ReasonSearch, w.Reason, key)
		assert.Equal(t, "user-1", w.ImportedBy, key)
	}
}

func TestMerger_RepeatSearchDoesNotReimport(t *testing.T) {
	f := newMergerFixture(t)
	ctx := context.Background()

	first, err := f.merger.Search(ctx, Request{Term: "dune", UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, 3, first.ImportedCount)

	second, err := f.merger.Search(ctx, Request{Term: "dune", UserID: "user-2"})
	require.NoError(t, err)
	assert.Zero(t, second.ImportedCount)
	assert.Equal(t, 3, second.LocalCount, "imports are indexed through the store hook")
	assert.Equal(t, 3, second.Total)

	for _, key := range []string{"OL1W", "OL2W", "OL3W"} {
		assert.Equal(t, 1, f.catalog.fetches[key], key)
	}
}

func TestMerger_LocalFillsPage(t *testing.T) {
	f := newMergerFixture(t)
	f.importLocal(t, "OL1W")

	resp, err := f.merger.Search(context.Background(), Request{Term: "dune", PageSize: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"Dune"}, titles(resp.Works))
	assert.Zero(t, f.catalog.searchCount())
}

func TestMerger_EmptyTermStaysLocal(t *testing.T) {
	f := newMergerFixture(t)
	f.importLocal(t, "OL1W")

	resp, err := f.merger.Search(context.Background(), Request{})
	require.NoError(t, err)

	assert.Len(t, resp.Works, 1)
	assert.Zero(t, f.catalog.searchCount())
}

func TestMerger_Paginates(t *testing.T) {
	f := newMergerFixture(t)
	ctx := context.Background()
	f.importLocal(t, "OL1W")

	page1, err := f.merger.Search(ctx, Request{Term: "dune", Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Dune", "Dune Messiah"}, titles(page1.Works))
	assert.True(t, page1.HasMore)

	page2, err := f.merger.Search(ctx, Request{Term: "dune", Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page2.Works, 1)
	assert.Equal(t, 3, page2.Total)
	assert.False(t, page2.HasMore)

	page9, err := f.merger.Search(ctx, Request{Term: "dune", Page: 9, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, page9.Works)
}

func TestMerger_CatalogDownReturnsLocal(t *testing.T) {
	f := newMergerFixture(t)
	f.importLocal(t, "OL1W")
	f.catalog.searchErr = errors.New("connection refused")

	resp, err := f.merger.Search(context.Background(), Request{Term: "dune"})
	require.NoError(t, err)

	assert.True(t, resp.Partial)
	assert.Equal(t, []string{"Dune"}, titles(resp.Works))
	assert.Equal(t, 1, resp.Total)
}

func TestMerger_SkipsHitsThatFailToImport(t *testing.T) {
	f := newMergerFixture(t)
	f.catalog.hits = append([]metadata.SearchHit{{Key: "OL404W", Title: "Dune: Lost"}}, f.catalog.hits...)

	resp, err := f.merger.Search(context.Background(), Request{Term: "dune"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Dune", "Dune Messiah", "Children of Dune"}, titles(resp.Works))
	assert.Equal(t, 3, resp.ImportedCount)
}
