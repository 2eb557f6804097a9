package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/listenupapp/stagehand/internal/domain"
	"github.com/listenupapp/stagehand/internal/metadata"
)

const searchFields = "key,title,author_name,first_publish_year"

// Search queries the catalog by title, author or subject. Only work hits
// are returned.
func (c *Client) Search(ctx context.Context, term string, mode domain.SearchMode, limit int) ([]metadata.SearchHit, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}

	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	query := url.Values{}
	switch mode {
	case domain.SearchByContributor:
		query.Set("author", term)
	case domain.SearchByTag:
		query.Set("subject", term)
	default:
		query.Set("title", term)
	}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("fields", searchFields)

	body, err := c.get(ctx, "search", "/search.json", query)
	if err != nil {
		return nil, wrapError("search", term, err)
	}

	var resp rawSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, wrapError("search", term, fmt.Errorf("parse response: %w", err))
	}

	hits := make([]metadata.SearchHit, 0, len(resp.Docs))
	for _, d := range resp.Docs {
		key, err := NormalizeWorkKey(d.Key)
		if err != nil {
			continue
		}
		hits = append(hits, metadata.SearchHit{
			Key:              key,
			Title:            d.Title,
			ContributorNames: d.AuthorName,
			Year:             d.FirstPublishYear,
		})
	}
	return hits, nil
}
