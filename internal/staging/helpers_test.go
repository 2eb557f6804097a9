package staging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/listenupapp/stagehand/internal/domain"
	"github.com/listenupapp/stagehand/internal/engagement"
	"github.com/listenupapp/stagehand/internal/metadata"
	"github.com/listenupapp/stagehand/internal/metrics"
	"github.com/listenupapp/stagehand/internal/pending"
	"github.com/listenupapp/stagehand/internal/store/sqlite"
)

// fakeCatalog is an in-memory catalog that counts calls.
type fakeCatalog struct {
	mu           sync.Mutex
	works        map[string]*metadata.WorkRecord
	contributors map[string]*metadata.ContributorRecord
	hits         []metadata.SearchHit

	workCalls        map[string]int
	contributorCalls map[string]int
	searchCalls      int

	// failWith, when set, is returned by every fetch.
	failWith error
	// contributorErrs fails fetches of single contributors.
	contributorErrs map[string]error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		works:            make(map[string]*metadata.WorkRecord),
		contributors:     make(map[string]*metadata.ContributorRecord),
		workCalls:        make(map[string]int),
		contributorCalls: make(map[string]int),
		contributorErrs:  make(map[string]error),
	}
}

func (f *fakeCatalog) addWork(key, title string, contributorKeys []string, subjects ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.works[key] = &metadata.WorkRecord{
		Key:             key,
		Title:           title,
		Description:     "About " + title,
		Subjects:        subjects,
		ContributorKeys: contributorKeys,
	}
}

func (f *fakeCatalog) addContributor(key, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contributors[key] = &metadata.ContributorRecord{Key: key, Name: name}
}

func (f *fakeCatalog) FetchWork(_ context.Context, key string) (*metadata.WorkRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workCalls[key]++
	if f.failWith != nil {
		return nil, f.failWith
	}
	rec, ok := f.works[key]
	if !ok {
		return nil, fmt.Errorf("fake catalog work %s: %w", key, metadata.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeCatalog) FetchContributor(_ context.Context, key string) (*metadata.ContributorRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contributorCalls[key]++
	if f.failWith != nil {
		return nil, f.failWith
	}
	if err := f.contributorErrs[key]; err != nil {
		return nil, err
	}
	rec, ok := f.contributors[key]
	if !ok {
		return nil, fmt.Errorf("fake catalog contributor %s: %w", key, metadata.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeCatalog) Search(_ context.Context, _ string, _ domain.SearchMode, limit int) ([]metadata.SearchHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	if f.failWith != nil {
		return nil, f.failWith
	}
	if limit > 0 && len(f.hits) > limit {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

func (f *fakeCatalog) workFetches(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.workCalls[key]
}

func (f *fakeCatalog) contributorFetches(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contributorCalls[key]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	coord   *Coordinator
	store   *sqlite.Store
	pending *pending.Store
	catalog *fakeCatalog
	clock   *fakeClock
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := testLogger()

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "catalog.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ps, err := pending.OpenInMemory(domain.DefaultPendingTTL, logger)
	require.NoError(t, err)
	t.Cleanup(func() { ps.Close() })

	clock := &fakeClock{now: time.Now().UTC().Truncate(time.Millisecond)}
	ps.SetClock(clock.Now)

	catalog := newFakeCatalog()
	checker := engagement.New(st, ps, logger)
	coord := NewCoordinator(st, catalog, ps, checker, metrics.New(), Config{PendingTTL: domain.DefaultPendingTTL}, logger)
	coord.SetClock(clock.Now)

	return &harness{coord: coord, store: st, pending: ps, catalog: catalog, clock: clock}
}

// seedTolkien registers two works sharing one author.
func (h *harness) seedTolkien() {
	h.catalog.addContributor("OL26320A", "J.R.R. Tolkien")
	h.catalog.addContributor("OL2A", "Christopher Tolkien")
	h.catalog.addWork("OL27448W", "The Lord of the Rings", []string{"OL26320A"}, "Fantasy fiction", "Middle Earth")
	h.catalog.addWork("OL27513W", "The Silmarillion", []string{"OL26320A", "OL2A"}, "Fantasy fiction")
}

func (h *harness) prepare(t *testing.T, session, user, key string, intent domain.ActionIntent) *PrepareResult {
	t.Helper()
	res, err := h.coord.Prepare(context.Background(), PrepareRequest{
		ExternalKey: key,
		UserID:      user,
		SessionID:   session,
		Intent:      intent,
	})
	require.NoError(t, err)
	return res
}

// hookedStore runs before ahead of each provisional delete.
type hookedStore struct {
	*sqlite.Store
	before func(kind domain.EntityKind)

	// countErr, when set, fails CountCommitments.
	countErr error
}

func (s *hookedStore) CountCommitments(ctx context.Context, workID string) (int, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.Store.CountCommitments(ctx, workID)
}

func (s *hookedStore) DeleteIfUnengaged(ctx context.Context, kind domain.EntityKind, id string) (bool, error) {
	s.before(kind)
	return s.Store.DeleteIfUnengaged(ctx, kind, id)
}

func (s *hookedStore) SweepProvisional(ctx context.Context, kind domain.EntityKind, cutoff time.Time, keep []string) ([]string, error) {
	s.before(kind)
	return s.Store.SweepProvisional(ctx, kind, cutoff, keep)
}

// withDeleteHook rebuilds the coordinator over a store that calls before
// ahead of every provisional delete.
func (h *harness) withDeleteHook(before func(kind domain.EntityKind)) *hookedStore {
	logger := testLogger()
	hooked := &hookedStore{Store: h.store, before: before}
	h.coord = NewCoordinator(hooked, h.catalog, h.pending, engagement.New(hooked, h.pending, logger), metrics.New(), Config{PendingTTL: domain.DefaultPendingTTL}, logger)
	h.coord.SetClock(h.clock.Now)
	return hooked
}
