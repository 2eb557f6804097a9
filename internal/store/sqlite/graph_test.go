package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/listenupapp/stagehand/internal/domain"
	"github.com/listenupapp/stagehand/internal/store"
)

func TestCreateWorkGraph(t *testing.T) {
	s := newTestStore(t)
	idx := &recordingIndexer{}
	s.SetSearchIndexer(idx)
	ctx := context.Background()
	now := time.Now()

	w := makeWork("OL1W", "The Left Hand of Darkness", domain.StatusProvisional, now)
	w.Description = "A *novel*."
	author := makeContributor("OL1A", "Ursula K. Le Guin", domain.StatusProvisional, now)

	res, err := s.CreateWorkGraph(ctx, &store.WorkGraph{
		Work:         w,
		Contributors: []*domain.Contributor{author},
		Tags: []store.TagInput{
			{Slug: "science-fiction", Name: "Science fiction"},
			{Slug: "gender", Name: "Gender"},
		},
	})
	if err != nil {
		t.Fatalf("CreateWorkGraph: %v", err)
	}

	if res.Work.ID != w.ID {
		t.Errorf("ID: got %q, want %q", res.Work.ID, w.ID)
	}
	if res.Work.Status != domain.StatusProvisional {
		t.Errorf("Status: got %q", res.Work.Status)
	}
	if res.Work.ImportedAt == nil || res.Work.ImportedBy != "user-1" || res.Work.Reason != domain.ReasonRate {
		t.Errorf("provenance not round-tripped: %+v", res.Work.Provenance)
	}
	if len(res.Work.Contributors) != 1 || res.Work.Contributors[0].Name != "Ursula K. Le Guin" {
		t.Errorf("Contributors: got %+v", res.Work.Contributors)
	}
	if len(res.Work.Tags) != 2 || res.Work.Tags[0].Slug != "gender" {
		t.Errorf("Tags: got %+v", res.Work.Tags)
	}
	if len(res.InsertedContributorIDs) != 1 || res.InsertedContributorIDs[0] != author.ID {
		t.Errorf("InsertedContributorIDs: got %v", res.InsertedContributorIDs)
	}
	if len(idx.indexed) != 1 || idx.indexed[0] != w.ID {
		t.Errorf("indexer calls: got %v", idx.indexed)
	}

	found, err := s.FindWorkByExternalKey(ctx, "OL1W")
	if err != nil {
		t.Fatalf("FindWorkByExternalKey: %v", err)
	}
	if found.ID != w.ID {
		t.Errorf("found ID %q, want %q", found.ID, w.ID)
	}
}

func TestCreateWorkGraph_DuplicateKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	first := makeWork("OL2W", "Kindred", domain.StatusProvisional, now)
	if _, err := s.CreateWorkGraph(ctx, &store.WorkGraph{Work: first}); err != nil {
		t.Fatalf("first create: %v", err)
	}

	second := makeWork("OL2W", "Kindred", domain.StatusProvisional, now)
	author := makeContributor("OL2A", "Octavia E. Butler", domain.StatusProvisional, now)
	_, err := s.CreateWorkGraph(ctx, &store.WorkGraph{Work: second, Contributors: []*domain.Contributor{author}})
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	// The losing transaction must not leave its contributor behind.
	if _, err := s.FindContributorByExternalKey(ctx, "OL2A"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected contributor rollback, got %v", err)
	}
}

func TestCreateWorkGraph_ReusesExistingContributor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	shared := makeContributor("OL3A", "N. K. Jemisin", domain.StatusConfirmed, now)
	if _, err := s.CreateWorkGraph(ctx, &store.WorkGraph{
		Work:         makeWork("OL6W", "The Obelisk Gate", domain.StatusConfirmed, now),
		Contributors: []*domain.Contributor{shared},
	}); err != nil {
		t.Fatalf("seed shared contributor: %v", err)
	}

	// A second import fetched the same author and minted a new ID for it.
	duplicate := makeContributor("OL3A", "N.K. Jemisin", domain.StatusProvisional, now)
	res, err := s.CreateWorkGraph(ctx, &store.WorkGraph{
		Work:         makeWork("OL3W", "The Fifth Season", domain.StatusProvisional, now),
		Contributors: []*domain.Contributor{duplicate},
	})
	if err != nil {
		t.Fatalf("CreateWorkGraph: %v", err)
	}

	if len(res.InsertedContributorIDs) != 0 {
		t.Errorf("expected no inserted contributors, got %v", res.InsertedContributorIDs)
	}
	if res.Work.Contributors[0].ID != shared.ID {
		t.Errorf("linked %q, want existing %q", res.Work.Contributors[0].ID, shared.ID)
	}
	if res.Work.Contributors[0].Status != domain.StatusConfirmed {
		t.Errorf("existing contributor status changed to %q", res.Work.Contributors[0].Status)
	}
}

func TestCreateWorkGraph_SharedTags(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, key := range []string{"OL4W", "OL5W"} {
		_, err := s.CreateWorkGraph(ctx, &store.WorkGraph{
			Work: makeWork(key, "Book "+key, domain.StatusProvisional, now),
			Tags: []store.TagInput{{Slug: "fantasy", Name: "Fantasy"}},
		})
		if err != nil {
			t.Fatalf("CreateWorkGraph %s: %v", key, err)
		}
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM tags WHERE slug = 'fantasy'`).Scan(&n); err != nil {
		t.Fatalf("count tags: %v", err)
	}
	if n != 1 {
		t.Errorf("expected a single fantasy tag, got %d", n)
	}

	w, err := s.FindWorkByExternalKey(ctx, "OL5W")
	if err != nil {
		t.Fatalf("FindWorkByExternalKey: %v", err)
	}
	if len(w.Tags) != 1 || w.Tags[0].Name != "Fantasy" {
		t.Errorf("Tags: got %+v", w.Tags)
	}
}

func TestCreateWorkGraph_ConcurrentSameKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateWorkGraph(ctx, &store.WorkGraph{
				Work: makeWork("OL6W", "Piranesi", domain.StatusProvisional, now),
				Contributors: []*domain.Contributor{
					makeContributor("OL6A", "Susanna Clarke", domain.StatusProvisional, now),
				},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, store.ErrAlreadyExists):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || conflicts != workers-1 {
		t.Errorf("succeeded=%d conflicts=%d", succeeded, conflicts)
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM works WHERE external_key = 'OL6W'`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected exactly one work row, got %d", n)
	}
}

func TestCreateWorkGraph_InvalidInput(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateWorkGraph(context.Background(), &store.WorkGraph{Work: &domain.Work{Title: "No ID"}})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGetWorksByIDs_PreservesOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	var ids []string
	for _, key := range []string{"OL7W", "OL8W", "OL9W"} {
		w := makeWork(key, "Title "+key, domain.StatusConfirmed, now)
		if _, err := s.CreateWorkGraph(ctx, &store.WorkGraph{Work: w}); err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, w.ID)
	}

	got, err := s.GetWorksByIDs(ctx, []string{ids[2], "missing", ids[0]})
	if err != nil {
		t.Fatalf("GetWorksByIDs: %v", err)
	}
	if len(got) != 2 || got[0].ID != ids[2] || got[1].ID != ids[0] {
		t.Errorf("unexpected order: %v", []string{got[0].ID, got[1].ID})
	}

	byKey, err := s.FindWorksByExternalKeys(ctx, []string{"OL8W", "OL404W"})
	if err != nil {
		t.Fatalf("FindWorksByExternalKeys: %v", err)
	}
	if len(byKey) != 1 || byKey["OL8W"] == nil {
		t.Errorf("FindWorksByExternalKeys: got %v", byKey)
	}

	count := 0
	for w, err := range s.ListWorks(ctx) {
		if err != nil {
			t.Fatalf("ListWorks: %v", err)
		}
		if w.Tags == nil {
			t.Errorf("ListWorks should hydrate relations")
		}
		count++
	}
	if count != 3 {
		t.Errorf("ListWorks: got %d works", count)
	}
}
