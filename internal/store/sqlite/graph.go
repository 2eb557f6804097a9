package sqlite

import (
	"context"
	"fmt"

	"github.com/listenupapp/stagehand/internal/store"
)

// CreateWorkGraph writes a work, its contributors, its tags and the edges
// between them in one transaction. The work row goes first so its external
// key is claimed before anything else is written.
//
// Returns a *store.ConflictError (matching store.ErrAlreadyExists) when
// another row already holds the work's external key; nothing is written in
// that case.
func (s *Store) CreateWorkGraph(ctx context.Context, g *store.WorkGraph) (*store.WorkGraphResult, error) {
	if g == nil || g.Work == nil || g.Work.ID == "" || g.Work.Title == "" {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertWork(ctx, tx, g.Work); err != nil {
		if isUniqueViolation(err) {
			return nil, &store.ConflictError{Table: "works", Key: g.Work.ExternalKey}
		}
		return nil, fmt.Errorf("insert work: %w", err)
	}

	result := &store.WorkGraphResult{InsertedContributorIDs: []string{}}

	for pos, c := range g.Contributors {
		contributorID, inserted, err := ensureContributor(ctx, tx, c)
		if err != nil {
			return nil, fmt.Errorf("ensure contributor %s: %w", c.ExternalKey, err)
		}
		if inserted {
			result.InsertedContributorIDs = append(result.InsertedContributorIDs, contributorID)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO work_contributors (work_id, contributor_id, position)
			VALUES (?, ?, ?)
			ON CONFLICT DO NOTHING`,
			g.Work.ID, contributorID, pos,
		); err != nil {
			return nil, fmt.Errorf("link contributor %s: %w", contributorID, err)
		}
	}

	for _, t := range g.Tags {
		tagID, err := s.ensureTag(ctx, tx, t)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO work_tags (work_id, tag_id) VALUES (?, ?)
			ON CONFLICT DO NOTHING`,
			g.Work.ID, tagID,
		); err != nil {
			return nil, fmt.Errorf("link tag %s: %w", t.Slug, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	w, err := s.GetWork(ctx, g.Work.ID)
	if err != nil {
		return nil, fmt.Errorf("reload work: %w", err)
	}
	result.Work = w

	if err := s.searchIndexer.IndexWork(ctx, w); err != nil {
		s.logger.Warn("failed to index work", "work_id", w.ID, "error", err)
	}

	return result, nil
}
