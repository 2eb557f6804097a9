package sqlite

import (
	"context"
	"fmt"

	"github.com/listenupapp/stagehand/internal/domain"
	"github.com/listenupapp/stagehand/internal/id"
	"github.com/listenupapp/stagehand/internal/store"
)

// tagColumns must match the scan order in scanTag.
const tagColumns = `id, slug, name, created_at`

func scanTag(scanner interface{ Scan(dest ...any) error }) (*domain.Tag, error) {
	var (
		t         domain.Tag
		createdAt string
	)
	if err := scanner.Scan(&t.ID, &t.Slug, &t.Name, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &t, nil
}

// ensureTag finds or creates the tag for in.Slug and returns its ID.
// Concurrent callers converge on a single row.
func (s *Store) ensureTag(ctx context.Context, q queryer, in store.TagInput) (string, error) {
	tagID, err := id.Generate(id.PrefixTag)
	if err != nil {
		return "", err
	}
	name := in.Name
	if name == "" {
		name = in.Slug
	}

	if _, err := q.ExecContext(ctx, `
		INSERT INTO tags (`+tagColumns+`) VALUES (?, ?, ?, ?)
		ON CONFLICT(slug) DO NOTHING`,
		tagID, in.Slug, name, formatTime(s.now()),
	); err != nil {
		return "", err
	}

	var existing string
	if err := q.QueryRowContext(ctx, `SELECT id FROM tags WHERE slug = ?`, in.Slug).Scan(&existing); err != nil {
		return "", fmt.Errorf("resolve tag %q: %w", in.Slug, err)
	}
	return existing, nil
}
