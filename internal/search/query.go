package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/listenupapp/stagehand/internal/domain"
	"github.com/listenupapp/stagehand/internal/text"
)

// Query is a local index query.
type Query struct {
	Term   string
	Mode   domain.SearchMode
	Limit  int
	Offset int
}

// Result is one page of local matches.
type Result struct {
	Total uint64
	Hits  []Hit
}

// Hit is a single matching work.
type Hit struct {
	ID          string
	ExternalKey string
	Title       string
	Score       float64
}

// IDs returns the hit IDs in rank order.
func (r *Result) IDs() []string {
	ids := make([]string, len(r.Hits))
	for i, h := range r.Hits {
		ids[i] = h.ID
	}
	return ids
}

// Search runs q against the index. An empty term lists works by title.
func (x *Index) Search(ctx context.Context, q Query) (*Result, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(buildQuery(q), q.Limit, q.Offset, false)
	if strings.TrimSpace(q.Term) == "" {
		req.SortBy([]string{"title", "_id"})
	} else {
		req.SortBy([]string{"-_score", "_id"})
	}
	req.Fields = []string{"external_key", "title"}

	res, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	out := &Result{Total: res.Total, Hits: make([]Hit, 0, len(res.Hits))}
	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		if k, ok := h.Fields["external_key"].(string); ok {
			hit.ExternalKey = k
		}
		if t, ok := h.Fields["title"].(string); ok {
			hit.Title = t
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}

// buildQuery maps a search mode onto the document fields.
//
// Title mode matches the title with fuzzy and prefix fallbacks, and the
// subtitle at a lower boost. Contributor mode matches names only; a title
// search for "Peter" should not return every book by a Peter. Tag mode
// compares slugs, so "Science Fiction" finds "science-fiction".
func buildQuery(q Query) query.Query {
	term := strings.TrimSpace(q.Term)
	if term == "" {
		return bleve.NewMatchAllQuery()
	}

	switch q.Mode {
	case domain.SearchByContributor:
		match := bleve.NewMatchQuery(term)
		match.SetField("contributors")
		match.SetOperator(query.MatchQueryOperatorAnd)
		match.SetBoost(2.0)

		fuzzy := bleve.NewMatchQuery(term)
		fuzzy.SetField("contributors")
		fuzzy.SetFuzziness(1)
		fuzzy.SetOperator(query.MatchQueryOperatorAnd)
		fuzzy.SetBoost(0.8)

		return bleve.NewDisjunctionQuery(match, fuzzy)

	case domain.SearchByTag:
		slug := text.Slug(term)
		exact := bleve.NewTermQuery(slug)
		exact.SetField("tags")
		exact.SetBoost(2.0)

		prefix := bleve.NewPrefixQuery(slug)
		prefix.SetField("tags")
		prefix.SetBoost(0.5)

		return bleve.NewDisjunctionQuery(exact, prefix)

	default:
		titleMatch := bleve.NewMatchQuery(term)
		titleMatch.SetField("title")
		titleMatch.SetBoost(3.0)

		subtitleMatch := bleve.NewMatchQuery(term)
		subtitleMatch.SetField("subtitle")
		subtitleMatch.SetBoost(1.0)

		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(term))
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("title")
		fuzzy.SetBoost(0.8)

		queries := []query.Query{titleMatch, subtitleMatch, fuzzy}

		// Prefix for autocomplete, minimum 2 chars.
		if len(term) >= 2 {
			prefix := bleve.NewPrefixQuery(strings.ToLower(term))
			prefix.SetField("title")
			prefix.SetBoost(0.5)
			queries = append(queries, prefix)
		}
		return bleve.NewDisjunctionQuery(queries...)
	}
}
