package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"github.com/listenupapp/stagehand/internal/domain"
	"github.com/listenupapp/stagehand/internal/store"
)

// workColumns must match the scan order in scanWork.
const workColumns = `id, external_key, title, subtitle, description, first_published,
	import_status, imported_by, imported_at, import_reason, created_at, updated_at`

func scanWork(scanner interface{ Scan(dest ...any) error }) (*domain.Work, error) {
	var w domain.Work

	var (
		externalKey    sql.NullString
		subtitle       sql.NullString
		description    sql.NullString
		firstPublished sql.NullString
		importedBy     sql.NullString
		importedAt     sql.NullString
		importReason   sql.NullString
		status         string
		createdAt      string
		updatedAt      string
	)

	err := scanner.Scan(
		&w.ID,
		&externalKey,
		&w.Title,
		&subtitle,
		&description,
		&firstPublished,
		&status,
		&importedBy,
		&importedAt,
		&importReason,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	w.ExternalKey = externalKey.String
	w.Subtitle = subtitle.String
	w.Description = description.String
	w.FirstPublished = firstPublished.String
	w.Status = domain.ImportStatus(status)
	w.ImportedBy = importedBy.String
	w.Reason = domain.ImportReason(importReason.String)

	if w.ImportedAt, err = parseNullableTime(importedAt); err != nil {
		return nil, fmt.Errorf("parse imported_at: %w", err)
	}
	if w.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if w.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &w, nil
}

func insertWork(ctx context.Context, q queryer, w *domain.Work) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO works (`+workColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID,
		nullString(w.ExternalKey),
		w.Title,
		nullString(w.Subtitle),
		nullString(w.Description),
		nullString(w.FirstPublished),
		string(w.Status),
		nullString(w.ImportedBy),
		nullTimeString(w.ImportedAt),
		nullString(string(w.Reason)),
		formatTime(w.CreatedAt),
		formatTime(w.UpdatedAt),
	)
	return err
}

// GetWork returns the work with its contributors and tags.
// Returns store.ErrNotFound if the work does not exist.
func (s *Store) GetWork(ctx context.Context, id string) (*domain.Work, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+workColumns+` FROM works WHERE id = ?`, id)
	return s.scanHydrated(ctx, row)
}

// FindWorkByExternalKey returns the work claimed by key.
// Returns store.ErrNotFound if no row has that key.
func (s *Store) FindWorkByExternalKey(ctx context.Context, key string) (*domain.Work, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+workColumns+` FROM works WHERE external_key = ?`, key)
	return s.scanHydrated(ctx, row)
}

func (s *Store) scanHydrated(ctx context.Context, row *sql.Row) (*domain.Work, error) {
	w, err := scanWork(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.hydrate(ctx, s.db, []*domain.Work{w}); err != nil {
		return nil, err
	}
	return w, nil
}

// FindWorksByExternalKeys returns the works claimed by any of keys, keyed by
// external key. Missing keys are simply absent from the map.
func (s *Store) FindWorksByExternalKeys(ctx context.Context, keys []string) (map[string]*domain.Work, error) {
	result := make(map[string]*domain.Work, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	works, err := s.queryWorks(ctx,
		`SELECT `+workColumns+` FROM works WHERE external_key IN (`+placeholders(len(keys))+`)`,
		stringArgs(keys)...)
	if err != nil {
		return nil, err
	}
	for _, w := range works {
		result[w.ExternalKey] = w
	}
	return result, nil
}

// GetWorksByIDs returns works in the order of ids, skipping IDs that no
// longer exist.
func (s *Store) GetWorksByIDs(ctx context.Context, ids []string) ([]*domain.Work, error) {
	if len(ids) == 0 {
		return []*domain.Work{}, nil
	}

	works, err := s.queryWorks(ctx,
		`SELECT `+workColumns+` FROM works WHERE id IN (`+placeholders(len(ids))+`)`,
		stringArgs(ids)...)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.Work, len(works))
	for _, w := range works {
		byID[w.ID] = w
	}
	ordered := make([]*domain.Work, 0, len(works))
	for _, id := range ids {
		if w, ok := byID[id]; ok {
			ordered = append(ordered, w)
		}
	}
	return ordered, nil
}

// ListWorks iterates every work with relations, in creation order.
func (s *Store) ListWorks(ctx context.Context) iter.Seq2[*domain.Work, error] {
	return func(yield func(*domain.Work, error) bool) {
		works, err := s.queryWorks(ctx, `SELECT `+workColumns+` FROM works ORDER BY created_at ASC`)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, w := range works {
			if !yield(w, nil) {
				return
			}
		}
	}
}

func (s *Store) queryWorks(ctx context.Context, query string, args ...any) ([]*domain.Work, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var works []*domain.Work
	for rows.Next() {
		w, err := scanWork(rows)
		if err != nil {
			return nil, err
		}
		works = append(works, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.hydrate(ctx, s.db, works); err != nil {
		return nil, err
	}
	if works == nil {
		works = []*domain.Work{}
	}
	return works, nil
}

// hydrate loads contributors and tags for works in two queries.
func (s *Store) hydrate(ctx context.Context, q queryer, works []*domain.Work) error {
	if len(works) == 0 {
		return nil
	}

	byID := make(map[string]*domain.Work, len(works))
	ids := make([]string, 0, len(works))
	for _, w := range works {
		byID[w.ID] = w
		w.Contributors = []*domain.Contributor{}
		w.Tags = []*domain.Tag{}
		ids = append(ids, w.ID)
	}
	in := placeholders(len(ids))

	rows, err := q.QueryContext(ctx, `
		SELECT wc.work_id, `+prefixed("c", contributorColumns)+`
		FROM work_contributors wc
		JOIN contributors c ON c.id = wc.contributor_id
		WHERE wc.work_id IN (`+in+`)
		ORDER BY wc.work_id, wc.position`,
		stringArgs(ids)...)
	if err != nil {
		return fmt.Errorf("load work contributors: %w", err)
	}
	for rows.Next() {
		var workID string
		c, err := scanContributor(prefixScanner{rows, &workID})
		if err != nil {
			rows.Close()
			return fmt.Errorf("scan work contributor: %w", err)
		}
		byID[workID].Contributors = append(byID[workID].Contributors, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	rows, err = q.QueryContext(ctx, `
		SELECT wt.work_id, `+prefixed("t", tagColumns)+`
		FROM work_tags wt
		JOIN tags t ON t.id = wt.tag_id
		WHERE wt.work_id IN (`+in+`)
		ORDER BY wt.work_id, t.slug`,
		stringArgs(ids)...)
	if err != nil {
		return fmt.Errorf("load work tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var workID string
		t, err := scanTag(prefixScanner{rows, &workID})
		if err != nil {
			return fmt.Errorf("scan work tag: %w", err)
		}
		byID[workID].Tags = append(byID[workID].Tags, t)
	}
	return rows.Err()
}

// prefixScanner scans a leading work_id column before delegating the rest.
type prefixScanner struct {
	rows   *sql.Rows
	workID *string
}

func (p prefixScanner) Scan(dest ...any) error {
	return p.rows.Scan(append([]any{p.workID}, dest...)...)
}
