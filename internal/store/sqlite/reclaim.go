package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/listenupapp/stagehand/internal/domain"
	"github.com/listenupapp/stagehand/internal/store"
)

// reclaimer describes how one stageable entity kind is stored and what keeps
// a provisional row alive. The SQL fragments reference the table by its own
// name so they can be used as correlated subqueries.
type reclaimer interface {
	table() string
	label() string
	// references counts the rows that depend on the outer row.
	references() string
	// deleted is called with the IDs removed by a reclaim.
	deleted(ctx context.Context, ids []string)
}

type workReclaimer struct{ s *Store }

func (workReclaimer) table() string { return "works" }
func (workReclaimer) label() string { return "title" }
func (workReclaimer) references() string {
	return `(SELECT COUNT(*) FROM commitments c WHERE c.work_id = works.id)`
}

func (r workReclaimer) deleted(ctx context.Context, ids []string) {
	if err := r.s.searchIndexer.DeleteWorks(ctx, ids); err != nil {
		r.s.logger.Warn("failed to remove reclaimed works from index", "count", len(ids), "error", err)
	}
}

type contributorReclaimer struct{}

func (contributorReclaimer) table() string { return "contributors" }
func (contributorReclaimer) label() string { return "name" }
func (contributorReclaimer) references() string {
	return `(SELECT COUNT(*) FROM work_contributors wc WHERE wc.contributor_id = contributors.id)`
}
func (contributorReclaimer) deleted(context.Context, []string) {}

func (s *Store) reclaimerFor(kind domain.EntityKind) (reclaimer, error) {
	switch kind {
	case domain.KindWork:
		return workReclaimer{s: s}, nil
	case domain.KindContributor:
		return contributorReclaimer{}, nil
	default:
		return nil, fmt.Errorf("%w: entity kind %q", store.ErrInvalidInput, kind)
	}
}

// DeleteIfUnengaged deletes a provisional row only if nothing references it.
// The check and the delete are one statement, so a commitment or link
// written concurrently either lands first and saves the row, or fails
// because the row is gone.
//
// Returns false when the row is confirmed, referenced, or already gone.
func (s *Store) DeleteIfUnengaged(ctx context.Context, kind domain.EntityKind, id string) (bool, error) {
	r, err := s.reclaimerFor(kind)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM `+r.table()+`
		WHERE id = ?
		  AND import_status = 'provisional'
		  AND `+r.references()+` = 0`,
		id)
	if err != nil {
		return false, fmt.Errorf("conditional delete %s %s: %w", kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	r.deleted(ctx, []string{id})
	return true, nil
}

// SweepProvisional deletes every provisional row of kind imported before
// cutoff that nothing references, except IDs listed in keep. Returns the
// deleted IDs.
func (s *Store) SweepProvisional(ctx context.Context, kind domain.EntityKind, cutoff time.Time, keep []string) ([]string, error) {
	r, err := s.reclaimerFor(kind)
	if err != nil {
		return nil, err
	}

	query := `
		DELETE FROM ` + r.table() + `
		WHERE import_status = 'provisional'
		  AND imported_at < ?
		  AND ` + r.references() + ` = 0`
	args := []any{formatTime(cutoff)}
	if len(keep) > 0 {
		query += ` AND id NOT IN (` + placeholders(len(keep)) + `)`
		args = append(args, stringArgs(keep)...)
	}
	query += ` RETURNING id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sweep %s: %w", kind, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) > 0 {
		r.deleted(ctx, ids)
	}
	return ids, nil
}

// ListProvisional returns provisional rows of kind imported before cutoff,
// oldest first, with their reference counts.
func (s *Store) ListProvisional(ctx context.Context, kind domain.EntityKind, cutoff time.Time) ([]store.ProvisionalRow, error) {
	r, err := s.reclaimerFor(kind)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, external_key, `+r.label()+`, imported_by, imported_at, `+r.references()+`
		FROM `+r.table()+`
		WHERE import_status = 'provisional' AND imported_at < ?
		ORDER BY imported_at ASC`,
		formatTime(cutoff))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []store.ProvisionalRow{}
	for rows.Next() {
		var (
			row         store.ProvisionalRow
			externalKey sql.NullString
			importedBy  sql.NullString
			importedAt  sql.NullString
		)
		if err := rows.Scan(&row.ID, &externalKey, &row.Label, &importedBy, &importedAt, &row.References); err != nil {
			return nil, err
		}
		row.Kind = kind
		row.ExternalKey = externalKey.String
		row.ImportedBy = importedBy.String
		if at, err := parseNullableTime(importedAt); err != nil {
			return nil, err
		} else if at != nil {
			row.ImportedAt = *at
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
