package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/listenupapp/stagehand/internal/domain"
	"github.com/listenupapp/stagehand/internal/store"
)

func seedGraph(t *testing.T, s *Store, key string, status domain.ImportStatus, at time.Time, contributors ...*domain.Contributor) *store.WorkGraphResult {
	t.Helper()
	res, err := s.CreateWorkGraph(context.Background(), &store.WorkGraph{
		Work:         makeWork(key, "Title "+key, status, at),
		Contributors: contributors,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", key, err)
	}
	return res
}

func TestDeleteIfUnengaged_Work(t *testing.T) {
	s := newTestStore(t)
	idx := &recordingIndexer{}
	s.SetSearchIndexer(idx)
	ctx := context.Background()

	res := seedGraph(t, s, "OL30W", domain.StatusProvisional, time.Now())

	deleted, err := s.DeleteIfUnengaged(ctx, domain.KindWork, res.Work.ID)
	if err != nil {
		t.Fatalf("DeleteIfUnengaged: %v", err)
	}
	if !deleted {
		t.Fatal("expected delete")
	}
	if _, err := s.FindWorkByExternalKey(ctx, "OL30W"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if len(idx.deleted) != 1 || idx.deleted[0] != res.Work.ID {
		t.Errorf("index deletes: got %v", idx.deleted)
	}

	// Second attempt is a quiet no-op.
	deleted, err = s.DeleteIfUnengaged(ctx, domain.KindWork, res.Work.ID)
	if err != nil || deleted {
		t.Errorf("repeat delete: deleted=%v err=%v", deleted, err)
	}
}

func TestDeleteIfUnengaged_KeepsCommittedWork(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res := seedGraph(t, s, "OL31W", domain.StatusProvisional, time.Now())
	// Write the commitment directly so the work stays provisional.
	if _, err := s.db.Exec(`INSERT INTO commitments (id, work_id, user_id, kind, rating, list_name, created_at, updated_at)
		VALUES ('cmt-1', ?, 'user-2', 'rating', 4, '', ?, ?)`,
		res.Work.ID, formatTime(time.Now()), formatTime(time.Now())); err != nil {
		t.Fatalf("insert commitment: %v", err)
	}

	deleted, err := s.DeleteIfUnengaged(ctx, domain.KindWork, res.Work.ID)
	if err != nil {
		t.Fatalf("DeleteIfUnengaged: %v", err)
	}
	if deleted {
		t.Error("work with a commitment must not be deleted")
	}
	if _, err := s.GetWork(ctx, res.Work.ID); err != nil {
		t.Errorf("work should still exist: %v", err)
	}
}

func TestDeleteIfUnengaged_KeepsConfirmed(t *testing.T) {
	s := newTestStore(t)

	res := seedGraph(t, s, "OL32W", domain.StatusConfirmed, time.Now())

	deleted, err := s.DeleteIfUnengaged(context.Background(), domain.KindWork, res.Work.ID)
	if err != nil || deleted {
		t.Errorf("confirmed work: deleted=%v err=%v", deleted, err)
	}
}

func TestDeleteIfUnengaged_ContributorStillReferenced(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	author := makeContributor("OL33A", "Gene Wolfe", domain.StatusProvisional, now)
	first := seedGraph(t, s, "OL33W", domain.StatusProvisional, now, author)
	seedGraph(t, s, "OL34W", domain.StatusProvisional, now, author)

	if ok, err := s.DeleteIfUnengaged(ctx, domain.KindWork, first.Work.ID); err != nil || !ok {
		t.Fatalf("delete first work: ok=%v err=%v", ok, err)
	}

	deleted, err := s.DeleteIfUnengaged(ctx, domain.KindContributor, author.ID)
	if err != nil {
		t.Fatalf("DeleteIfUnengaged contributor: %v", err)
	}
	if deleted {
		t.Error("contributor credited by another work must survive")
	}

	if _, err := s.FindContributorByExternalKey(ctx, "OL33A"); err != nil {
		t.Errorf("contributor should still exist: %v", err)
	}
}

func TestDeleteIfUnengaged_UnknownKind(t *testing.T) {
	s := newTestStore(t)

	_, err := s.DeleteIfUnengaged(context.Background(), domain.EntityKind("tag"), "tag-1")
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSweepProvisional(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	old := now.Add(-2 * time.Hour)

	orphanAuthor := makeContributor("OL40A", "Orphan Author", domain.StatusProvisional, old)
	abandoned := seedGraph(t, s, "OL40W", domain.StatusProvisional, old, orphanAuthor)
	committed := seedGraph(t, s, "OL41W", domain.StatusProvisional, old)
	claimed := seedGraph(t, s, "OL42W", domain.StatusProvisional, old)
	fresh := seedGraph(t, s, "OL43W", domain.StatusProvisional, now)
	confirmed := seedGraph(t, s, "OL44W", domain.StatusConfirmed, old)

	if _, err := s.db.Exec(`INSERT INTO commitments (id, work_id, user_id, kind, rating, list_name, created_at, updated_at)
		VALUES ('cmt-9', ?, 'user-2', 'rating', 5, '', ?, ?)`,
		committed.Work.ID, formatTime(now), formatTime(now)); err != nil {
		t.Fatalf("insert commitment: %v", err)
	}

	cutoff := now.Add(-time.Hour)

	rows, err := s.ListProvisional(ctx, domain.KindWork, cutoff)
	if err != nil {
		t.Fatalf("ListProvisional: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("ListProvisional: got %d rows", len(rows))
	}

	deleted, err := s.SweepProvisional(ctx, domain.KindWork, cutoff, []string{claimed.Work.ID})
	if err != nil {
		t.Fatalf("SweepProvisional works: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != abandoned.Work.ID {
		t.Errorf("deleted works: got %v, want [%s]", deleted, abandoned.Work.ID)
	}

	for _, keep := range []string{committed.Work.ID, claimed.Work.ID, fresh.Work.ID, confirmed.Work.ID} {
		if _, err := s.GetWork(ctx, keep); err != nil {
			t.Errorf("work %s should survive: %v", keep, err)
		}
	}

	gone, err := s.SweepProvisional(ctx, domain.KindContributor, cutoff, nil)
	if err != nil {
		t.Fatalf("SweepProvisional contributors: %v", err)
	}
	if len(gone) != 1 || gone[0] != orphanAuthor.ID {
		t.Errorf("deleted contributors: got %v", gone)
	}
}
