// Package pending persists the one in-flight staged action each session may
// hold. Records expire on their own through Badger's entry TTL.
package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/listenupapp/stagehand/internal/domain"
)

// Sentinel errors.
var (
	ErrNotFound = errors.New("pending: no pending action for session")
	ErrMismatch = errors.New("pending: stored action does not match")
)

const (
	sessionPrefix = "pending:session:"
	workIdxPrefix = "pending:idx:work:"

	// Optimistic transactions can collide under concurrent writers.
	maxConflictRetries = 5
)

// Store keeps PendingAction records keyed by session, with a secondary
// index from work ID to the sessions that currently claim it.
type Store struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (or creates) the pending store at path.
func Open(path string, ttl time.Duration, logger *slog.Logger) (*Store, error) {
	return open(badger.DefaultOptions(path), ttl, logger)
}

// OpenInMemory opens a store that keeps nothing on disk.
func OpenInMemory(ttl time.Duration, logger *slog.Logger) (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), ttl, logger)
}

func open(opts badger.Options, ttl time.Duration, logger *slog.Logger) (*Store, error) {
	opts.Logger = nil
	opts.SyncWrites = !opts.InMemory
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	if ttl <= 0 {
		ttl = domain.DefaultPendingTTL
	}
	logger.Info("pending action store opened", "path", opts.Dir, "in_memory", opts.InMemory, "ttl", ttl)
	return &Store{db: db, ttl: ttl, logger: logger, now: time.Now}, nil
}

// SetClock replaces the clock used to judge claim liveness. Badger's own
// entry TTL still applies on top.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// TTL returns the lifetime applied to stored records.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

func sessionKey(sessionID string) []byte {
	return []byte(sessionPrefix + sessionID)
}

func workIndexKey(workID, sessionID string) []byte {
	return []byte(workIdxPrefix + workID + ":" + sessionID)
}

// Get returns the session's pending action.
// Returns ErrNotFound if there is none or it has expired.
func (s *Store) Get(ctx context.Context, sessionID string) (*domain.PendingAction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var pa *domain.PendingAction
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		pa, err = getAction(txn, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pa, nil
}

// Put stores pa as its session's pending action, replacing any previous one.
// The replaced action is returned, or nil if there was none.
func (s *Store) Put(ctx context.Context, pa *domain.PendingAction) (*domain.PendingAction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pa.SessionID == "" || pa.ActionID == "" || pa.WorkID == "" {
		return nil, fmt.Errorf("pending action missing session, action or work id")
	}

	data, err := json.Marshal(pa)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pending action: %w", err)
	}

	var previous *domain.PendingAction
	err = s.update(func(txn *badger.Txn) error {
		previous = nil
		old, err := getAction(txn, pa.SessionID)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return err
		default:
			previous = old
			if old.WorkID != pa.WorkID {
				if err := txn.Delete(workIndexKey(old.WorkID, old.SessionID)); err != nil {
					return fmt.Errorf("failed to delete old index key: %w", err)
				}
			}
		}

		if err := txn.SetEntry(badger.NewEntry(sessionKey(pa.SessionID), data).WithTTL(s.ttl)); err != nil {
			return fmt.Errorf("failed to set pending action: %w", err)
		}
		stamp := []byte(pa.CreatedAt.UTC().Format(time.RFC3339Nano))
		idx := badger.NewEntry(workIndexKey(pa.WorkID, pa.SessionID), stamp).WithTTL(s.ttl)
		if err := txn.SetEntry(idx); err != nil {
			return fmt.Errorf("failed to set index key: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}

// Take removes and returns the session's pending action, but only if it is
// the one described by expected. Exactly one concurrent caller can take a
// given action.
//
// Returns ErrNotFound if the session holds nothing and ErrMismatch if it
// holds a different action.
func (s *Store) Take(ctx context.Context, expected *domain.PendingAction) (*domain.PendingAction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var taken *domain.PendingAction
	err := s.update(func(txn *badger.Txn) error {
		current, err := getAction(txn, expected.SessionID)
		if err != nil {
			return err
		}
		if !current.Matches(expected) {
			return ErrMismatch
		}
		if err := txn.Delete(sessionKey(current.SessionID)); err != nil {
			return fmt.Errorf("failed to delete pending action: %w", err)
		}
		if err := txn.Delete(workIndexKey(current.WorkID, current.SessionID)); err != nil {
			return fmt.Errorf("failed to delete index key: %w", err)
		}
		taken = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return taken, nil
}

// CountClaims returns how many sessions other than excludeSession hold a
// live pending action on workID.
func (s *Store) CountClaims(ctx context.Context, workID, excludeSession string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	prefix := []byte(workIdxPrefix + workID + ":")
	now := s.now()
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			sessionID := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
			if sessionID == excludeSession {
				continue
			}
			live, err := s.liveClaim(it.Item(), now)
			if err != nil {
				return err
			}
			if live {
				n++
			}
		}
		return nil
	})
	return n, err
}

// ClaimedWorkIDs returns every work ID with at least one live claim.
func (s *Store) ClaimedWorkIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(workIdxPrefix)
	now := s.now()
	seen := make(map[string]bool)
	ids := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rest := strings.TrimPrefix(string(it.Item().Key()), workIdxPrefix)
			// Session IDs may contain ':' but work IDs do not.
			workID, _, ok := strings.Cut(rest, ":")
			if !ok || seen[workID] {
				continue
			}
			live, err := s.liveClaim(it.Item(), now)
			if err != nil {
				return err
			}
			if live {
				seen[workID] = true
				ids = append(ids, workID)
			}
		}
		return nil
	})
	return ids, err
}

// List iterates every live pending action.
func (s *Store) List(ctx context.Context) iter.Seq2[*domain.PendingAction, error] {
	return func(yield func(*domain.PendingAction, error) bool) {
		prefix := []byte(sessionPrefix)
		_ = s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if ctx.Err() != nil {
					yield(nil, ctx.Err())
					return ctx.Err()
				}
				var pa domain.PendingAction
				err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &pa)
				})
				if err != nil {
					yield(nil, err)
					return err
				}
				if !yield(&pa, nil) {
					return nil
				}
			}
			return nil
		})
	}
}

// liveClaim reports whether an index entry's action is still within its TTL.
func (s *Store) liveClaim(item *badger.Item, now time.Time) (bool, error) {
	var created time.Time
	err := item.Value(func(val []byte) error {
		var err error
		created, err = time.Parse(time.RFC3339Nano, string(val))
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to read claim %s: %w", item.Key(), err)
	}
	return now.Before(created.Add(s.ttl)), nil
}

func getAction(txn *badger.Txn, sessionID string) (*domain.PendingAction, error) {
	item, err := txn.Get(sessionKey(sessionID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending action: %w", err)
	}

	var pa domain.PendingAction
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &pa)
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending action: %w", err)
	}
	return &pa, nil
}

// update runs fn in a read-write transaction, retrying on conflicts.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := range maxConflictRetries {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.logger.Debug("pending store transaction conflict, retrying", "attempt", attempt+1)
	}
	return err
}
