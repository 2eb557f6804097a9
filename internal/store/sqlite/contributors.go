package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/listenupapp/stagehand/internal/domain"
	"github.com/listenupapp/stagehand/internal/store"
)

// contributorColumns must match the scan order in scanContributor.
const contributorColumns = `id, external_key, name, bio, birth_date, death_date,
	import_status, imported_by, imported_at, import_reason, created_at, updated_at`

func scanContributor(scanner interface{ Scan(dest ...any) error }) (*domain.Contributor, error) {
	var c domain.Contributor

	var (
		externalKey  sql.NullString
		bio          sql.NullString
		birthDate    sql.NullString
		deathDate    sql.NullString
		importedBy   sql.NullString
		importedAt   sql.NullString
		importReason sql.NullString
		status       string
		createdAt    string
		updatedAt    string
	)

	err := scanner.Scan(
		&c.ID,
		&externalKey,
		&c.Name,
		&bio,
		&birthDate,
		&deathDate,
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

	c.ExternalKey = externalKey.String
	c.Bio = bio.String
	c.BirthDate = birthDate.String
	c.DeathDate = deathDate.String
	c.Status = domain.ImportStatus(status)
	c.ImportedBy = importedBy.String
	c.Reason = domain.ImportReason(importReason.String)

	if c.ImportedAt, err = parseNullableTime(importedAt); err != nil {
		return nil, fmt.Errorf("parse imported_at: %w", err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &c, nil
}

// ensureContributor inserts c unless a row with the same external key (or
// ID, for keyless rows) exists. Returns the ID of the row now present and
// whether this call inserted it.
func ensureContributor(ctx context.Context, q queryer, c *domain.Contributor) (string, bool, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO contributors (`+contributorColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		c.ID,
		nullString(c.ExternalKey),
		c.Name,
		nullString(c.Bio),
		nullString(c.BirthDate),
		nullString(c.DeathDate),
		string(c.Status),
		nullString(c.ImportedBy),
		nullTimeString(c.ImportedAt),
		nullString(string(c.Reason)),
		formatTime(c.CreatedAt),
		formatTime(c.UpdatedAt),
	)
	if err != nil {
		return "", false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", false, err
	}
	if n == 1 {
		return c.ID, true, nil
	}

	// Someone else holds the key; link to their row.
	var existingID string
	if c.ExternalKey != "" {
		err = q.QueryRowContext(ctx, `SELECT id FROM contributors WHERE external_key = ?`, c.ExternalKey).Scan(&existingID)
	} else {
		err = q.QueryRowContext(ctx, `SELECT id FROM contributors WHERE id = ?`, c.ID).Scan(&existingID)
	}
	if err != nil {
		return "", false, fmt.Errorf("resolve existing contributor: %w", err)
	}
	return existingID, false, nil
}

// FindContributorByExternalKey retrieves a contributor by external key.
// Returns store.ErrNotFound if no row has that key.
func (s *Store) FindContributorByExternalKey(ctx context.Context, key string) (*domain.Contributor, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contributorColumns+` FROM contributors WHERE external_key = ?`, key)

	c, err := scanContributor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
