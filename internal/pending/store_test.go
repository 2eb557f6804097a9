package pending

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/stagehand/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s, err := OpenInMemory(domain.DefaultPendingTTL, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func action(session, actionID, work string) *domain.PendingAction {
	return &domain.PendingAction{
		ActionID:    actionID,
		SessionID:   session,
		UserID:      "user-1",
		WorkID:      work,
		ExternalKey: "OL1W",
		WasImported: true,
		Intent:      domain.IntentRate,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestPutGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pa := action("sess-1", "act-1", "work-1")
	pa.ImportedContributorIDs = []string{"ctb-1"}

	prev, err := s.Put(ctx, pa)
	require.NoError(t, err)
	assert.Nil(t, prev)

	got, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "act-1", got.ActionID)
	assert.Equal(t, []string{"ctb-1"}, got.ImportedContributorIDs)
	assert.True(t, got.CreatedAt.Equal(pa.CreatedAt))
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPut_ReplacesAndReindexes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, action("sess-1", "act-1", "work-1"))
	require.NoError(t, err)

	prev, err := s.Put(ctx, action("sess-1", "act-2", "work-2"))
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "act-1", prev.ActionID)

	n, err := s.CountClaims(ctx, "work-1", "")
	require.NoError(t, err)
	assert.Zero(t, n, "old work index entry should be gone")

	n, err = s.CountClaims(ctx, "work-2", "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTake(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pa := action("sess-1", "act-1", "work-1")
	_, err := s.Put(ctx, pa)
	require.NoError(t, err)

	_, err = s.Take(ctx, action("sess-1", "act-other", "work-1"))
	assert.ErrorIs(t, err, ErrMismatch)

	taken, err := s.Take(ctx, pa)
	require.NoError(t, err)
	assert.Equal(t, "act-1", taken.ActionID)

	_, err = s.Take(ctx, pa)
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.CountClaims(ctx, "work-1", "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTake_OnlyOneWinner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pa := action("sess-1", "act-1", "work-1")
	_, err := s.Put(ctx, pa)
	require.NoError(t, err)

	const callers = 10
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Take(ctx, pa); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestCountClaims_ExcludesSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, action("sess-a", "act-a", "work-1"))
	require.NoError(t, err)
	_, err = s.Put(ctx, action("sess-b", "act-b", "work-1"))
	require.NoError(t, err)

	n, err := s.CountClaims(ctx, "work-1", "sess-a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ids, err := s.ClaimedWorkIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"work-1"}, ids)
}

func TestList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, sess := range []string{"sess-a", "sess-b", "sess-c"} {
		_, err := s.Put(ctx, action(sess, "act-"+sess, "work-"+sess))
		require.NoError(t, err)
	}

	var sessions []string
	for pa, err := range s.List(ctx) {
		require.NoError(t, err)
		sessions = append(sessions, pa.SessionID)
	}
	assert.ElementsMatch(t, []string{"sess-a", "sess-b", "sess-c"}, sessions)
}

func TestExpiry(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s, err := OpenInMemory(time.Second, logger)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	_, err = s.Put(ctx, action("sess-1", "act-1", "work-1"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := s.Get(ctx, "sess-1")
		return err == ErrNotFound
	}, 5*time.Second, 100*time.Millisecond)

	n, err := s.CountClaims(ctx, "work-1", "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpen_OnDisk(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	dir := filepath.Join(t.TempDir(), "pending")

	s, err := Open(dir, 0, logger)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPendingTTL, s.TTL())

	_, err = s.Put(context.Background(), action("sess-1", "act-1", "work-1"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(dir, 0, logger)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "act-1", got.ActionID)
}

func TestClaims_HonorClock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pa := action("sess-1", "act-1", "work-1")
	pa.CreatedAt = created
	_, err := s.Put(ctx, pa)
	require.NoError(t, err)

	s.SetClock(func() time.Time { return created.Add(10 * time.Minute) })
	n, err := s.CountClaims(ctx, "work-1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	s.SetClock(func() time.Time { return created.Add(domain.DefaultPendingTTL) })
	n, err = s.CountClaims(ctx, "work-1", "")
	require.NoError(t, err)
	assert.Zero(t, n, "claim past its TTL should not count")

	ids, err := s.ClaimedWorkIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
