package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/listenupapp/stagehand/internal/metadata"
	"github.com/listenupapp/stagehand/internal/text"
)

// FetchWork fetches a work by key, following a merge redirect if the record
// was folded into another. The returned Key is the surviving record's.
func (c *Client) FetchWork(ctx context.Context, key string) (*metadata.WorkRecord, error) {
	normalized, err := NormalizeWorkKey(key)
	if err != nil {
		return nil, wrapError("fetchWork", key, err)
	}

	var raw rawWork
	for hops := 0; ; hops++ {
		body, err := c.get(ctx, "fetchWork", "/works/"+normalized+".json", nil)
		if err != nil {
			return nil, wrapError("fetchWork", normalized, err)
		}
		raw = rawWork{}
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, wrapError("fetchWork", normalized, fmt.Errorf("parse response: %w", err))
		}
		if raw.Type.Key != typeRedirect {
			break
		}
		if hops >= maxRedirects {
			return nil, wrapError("fetchWork", normalized, ErrTooManyHops)
		}
		next, err := NormalizeWorkKey(raw.Location)
		if err != nil {
			return nil, wrapError("fetchWork", normalized, err)
		}
		c.logger.Debug("openlibrary work redirect", "from", normalized, "to", next)
		normalized = next
	}

	return &metadata.WorkRecord{
		Key:             normalized,
		Title:           raw.Title,
		Subtitle:        raw.Subtitle,
		Description:     text.Description(string(raw.Description)),
		Subjects:        raw.Subjects,
		ContributorKeys: authorKeys(raw.Authors),
		FirstPublished:  raw.FirstPublishDate,
	}, nil
}

// FetchContributor fetches an author by key.
func (c *Client) FetchContributor(ctx context.Context, key string) (*metadata.ContributorRecord, error) {
	normalized, err := NormalizeAuthorKey(key)
	if err != nil {
		return nil, wrapError("fetchAuthor", key, err)
	}

	var raw rawAuthor
	for hops := 0; ; hops++ {
		body, err := c.get(ctx, "fetchAuthor", "/authors/"+normalized+".json", nil)
		if err != nil {
			return nil, wrapError("fetchAuthor", normalized, err)
		}
		raw = rawAuthor{}
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, wrapError("fetchAuthor", normalized, fmt.Errorf("parse response: %w", err))
		}
		if raw.Type.Key != typeRedirect {
			break
		}
		if hops >= maxRedirects {
			return nil, wrapError("fetchAuthor", normalized, ErrTooManyHops)
		}
		next, err := NormalizeAuthorKey(raw.Location)
		if err != nil {
			return nil, wrapError("fetchAuthor", normalized, err)
		}
		normalized = next
	}

	name := raw.Name
	if name == "" {
		name = raw.PersonalName
	}

	return &metadata.ContributorRecord{
		Key:       normalized,
		Name:      name,
		Bio:       text.StripHTML(string(raw.Bio)),
		BirthDate: raw.BirthDate,
		DeathDate: raw.DeathDate,
	}, nil
}

// authorKeys extracts unique, valid author keys in credit order.
func authorKeys(roles []rawAuthorRole) []string {
	seen := make(map[string]bool, len(roles))
	keys := make([]string, 0, len(roles))
	for _, r := range roles {
		k, err := NormalizeAuthorKey(r.key())
		if err != nil || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}
