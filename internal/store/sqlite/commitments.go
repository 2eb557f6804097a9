package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/listenupapp/stagehand/internal/domain"
	"github.com/listenupapp/stagehand/internal/id"
	"github.com/listenupapp/stagehand/internal/store"
)

// CreateCommitment records c and confirms its work in one transaction.
// The insert only happens while the work exists, so a commitment can never
// reference a row that a concurrent rollback just removed.
//
// A repeat commitment of the same kind by the same user (and, for list
// entries, the same list) replaces the earlier one. c.ID is set to the
// stored row's ID.
//
// Returns store.ErrNotFound if the work no longer exists.
func (s *Store) CreateCommitment(ctx context.Context, c *domain.Commitment) error {
	if c.WorkID == "" || c.UserID == "" {
		return store.ErrInvalidInput
	}
	if c.ID == "" {
		newID, err := id.Generate(id.PrefixCommitment)
		if err != nil {
			return err
		}
		c.ID = newID
	}
	now := s.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var storedID string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO commitments (id, work_id, user_id, kind, rating, body, list_name, created_at, updated_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM works WHERE id = ?)
		ON CONFLICT (work_id, user_id, kind, list_name) DO UPDATE SET
			rating = excluded.rating,
			body = excluded.body,
			updated_at = excluded.updated_at
		RETURNING id`,
		c.ID,
		c.WorkID,
		c.UserID,
		string(c.Kind),
		sql.NullInt64{Int64: int64(c.Rating), Valid: c.Rating != 0},
		nullString(c.Body),
		c.ListName,
		formatTime(c.CreatedAt),
		formatTime(c.UpdatedAt),
		c.WorkID,
	).Scan(&storedID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert commitment: %w", err)
	}
	c.ID = storedID

	if _, err := tx.ExecContext(ctx,
		`UPDATE works SET import_status = 'confirmed', updated_at = ? WHERE id = ?`,
		formatTime(now), c.WorkID,
	); err != nil {
		return fmt.Errorf("confirm work: %w", err)
	}

	return tx.Commit()
}

// CountCommitments returns how many commitments reference the work.
func (s *Store) CountCommitments(ctx context.Context, workID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM commitments WHERE work_id = ?`, workID).Scan(&n)
	return n, err
}
