package search

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/listenupapp/stagehand/internal/domain"
	domainerrors "github.com/listenupapp/stagehand/internal/errors"
	"github.com/listenupapp/stagehand/internal/metadata"
	"github.com/listenupapp/stagehand/internal/metrics"
	"github.com/listenupapp/stagehand/internal/staging"
	"github.com/listenupapp/stagehand/internal/store"
)

const (
	DefaultPageSize    = 20
	MaxPageSize        = 100
	defaultMaxExternal = 20
	defaultConcurrency = 4
)

// Importer resolves an external key to a local work, importing it when new.
type Importer interface {
	Import(ctx context.Context, req staging.ImportRequest) (*staging.ImportResult, error)
}

// MergerConfig tunes the merger. Zero values take defaults.
type MergerConfig struct {
	PageSize          int
	MaxExternal       int
	ImportConcurrency int
}

// Merger answers searches from the local index first and tops them up with
// external catalog hits, importing those it has not seen before.
type Merger struct {
	index    *Index
	store    store.Store
	catalog  metadata.Catalog
	importer Importer
	metrics  *metrics.Metrics
	logger   *slog.Logger

	pageSize    int
	maxExternal int
	concurrency int
}

// NewMerger creates a Merger. m may be nil.
func NewMerger(
	index *Index,
	s store.Store,
	catalog metadata.Catalog,
	importer Importer,
	m *metrics.Metrics,
	cfg MergerConfig,
	logger *slog.Logger,
) *Merger {
	if cfg.PageSize <= 0 || cfg.PageSize > MaxPageSize {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxExternal <= 0 {
		cfg.MaxExternal = defaultMaxExternal
	}
	if cfg.ImportConcurrency <= 0 {
		cfg.ImportConcurrency = defaultConcurrency
	}
	return &Merger{
		index:       index,
		store:       s,
		catalog:     catalog,
		importer:    importer,
		metrics:     m,
		logger:      logger,
		pageSize:    cfg.PageSize,
		maxExternal: cfg.MaxExternal,
		concurrency: cfg.ImportConcurrency,
	}
}

// Request is a hybrid search.
type Request struct {
	Term     string            `json:"term" validate:"max=200"`
	Mode     domain.SearchMode `json:"mode" validate:"omitempty,oneof=title contributor tag"`
	Page     int               `json:"page" validate:"omitempty,min=1"`
	PageSize int               `json:"page_size" validate:"omitempty,min=1,max=100"`

	// UserID is recorded as the importer of works the search pulls in.
	UserID string `json:"-"`
}

// Response is one page of the combined result list. Local matches come
// first, then external hits in catalog rank order.
type Response struct {
	Works         []*domain.Work `json:"works"`
	Page          int            `json:"page"`
	PageSize      int            `json:"page_size"`
	LocalCount    int            `json:"local_count"`
	ImportedCount int            `json:"imported_count"`
	Total         int            `json:"total"`
	HasMore       bool           `json:"has_more"`

	// Partial is set when the external catalog could not be reached and
	// only local results are shown.
	Partial bool `json:"partial,omitempty"`
}

// Search runs req. Works imported along the way are confirmed: appearing
// in a result list is not a staged user action and is never rolled back.
func (m *Merger) Search(ctx context.Context, req Request) (*Response, error) {
	mode := req.Mode
	if mode == "" {
		mode = domain.SearchByTitle
	}
	page := max(req.Page, 1)
	pageSize := req.PageSize
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = m.pageSize
	}
	need := page * pageSize
	term := strings.TrimSpace(req.Term)

	// 1. Local first.
	local, err := m.index.Search(ctx, Query{Term: term, Mode: mode, Limit: need})
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "local search failed")
	}
	localTotal := int(local.Total)

	combined, err := m.store.GetWorksByIDs(ctx, local.IDs())
	if err != nil {
		return nil, domainerrors.StoreFailure("load works", domainerrors.EntityRef{Kind: string(domain.KindWork)}, err)
	}

	resp := &Response{
		Page:       page,
		PageSize:   pageSize,
		LocalCount: localTotal,
		Total:      localTotal,
	}

	// 2. Top up from the catalog when the local list cannot fill the page.
	if term != "" && localTotal < need {
		external, imported, err := m.external(ctx, term, mode, need+1, req.UserID, combined)
		if err != nil {
			m.logger.Warn("external search failed, returning local results",
				"term", term,
				"mode", mode,
				"error", err,
			)
			resp.Partial = true
		} else {
			combined = append(combined, external...)
			resp.ImportedCount = imported
			resp.Total = len(combined)
		}
	}

	// 3. Paginate over the combined list.
	start := min((page-1)*pageSize, len(combined))
	end := min(start+pageSize, len(combined))
	resp.Works = combined[start:end]
	resp.HasMore = resp.Total > page*pageSize

	return resp, nil
}

// external fetches up to want catalog hits and resolves each to a local
// work, importing the novel ones. Works already in seen are dropped, so
// want covers the whole page plus one: local matches often come back from
// the catalog too, and the extra hit tells whether another page exists.
func (m *Merger) external(
	ctx context.Context,
	term string,
	mode domain.SearchMode,
	want int,
	userID string,
	seen []*domain.Work,
) ([]*domain.Work, int, error) {
	limit := min(want, m.maxExternal)
	hits, err := m.catalog.Search(ctx, term, mode, limit)
	if err != nil {
		return nil, 0, err
	}
	if len(hits) == 0 {
		return nil, 0, nil
	}

	seenIDs := make(map[string]bool, len(seen))
	for _, w := range seen {
		seenIDs[w.ID] = true
	}

	keys := make([]string, 0, len(hits))
	dup := make(map[string]bool, len(hits))
	for _, h := range hits {
		if h.Key == "" || dup[h.Key] {
			continue
		}
		dup[h.Key] = true
		keys = append(keys, h.Key)
	}

	known, err := m.store.FindWorksByExternalKeys(ctx, keys)
	if err != nil {
		return nil, 0, domainerrors.StoreFailure("find works", domainerrors.EntityRef{Kind: string(domain.KindWork)}, err)
	}

	resolved := make([]*domain.Work, len(keys))
	var (
		mu       sync.Mutex
		imported int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for i, key := range keys {
		if w, ok := known[key]; ok {
			resolved[i] = w
			continue
		}
		g.Go(func() error {
			res, err := m.importer.Import(gctx, staging.ImportRequest{
				ExternalKey: key,
				UserID:      userID,
				Status:      domain.StatusConfirmed,
				Reason:      domain.ReasonSearch,
			})
			if err != nil {
				// One bad hit does not spoil the page.
				m.logger.Warn("search import skipped",
					"external_key", key,
					"error", err,
				)
				return nil
			}
			resolved[i] = res.Work
			if res.WasImported {
				mu.Lock()
				imported++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	m.metrics.SearchImported(imported)

	works := make([]*domain.Work, 0, len(resolved))
	for _, w := range resolved {
		if w == nil || seenIDs[w.ID] {
			continue
		}
		seenIDs[w.ID] = true
		works = append(works, w)
	}

	if imported > 0 {
		m.logger.Info("search imported works",
			"term", term,
			"mode", mode,
			"imported", imported,
			"external_hits", len(hits),
		)
	}
	return works, imported, nil
}
