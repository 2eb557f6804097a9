package staging

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/listenupapp/stagehand/internal/domain"
	domainerrors "github.com/listenupapp/stagehand/internal/errors"
	"github.com/listenupapp/stagehand/internal/id"
	"github.com/listenupapp/stagehand/internal/metadata"
	"github.com/listenupapp/stagehand/internal/store"
	"github.com/listenupapp/stagehand/internal/text"
)

const (
	defaultMaxTags             = 12
	defaultContributorFetchers = 4

	// A lost insert race is retried once in case the winner was rolled back
	// before the loser could read it.
	maxClaimAttempts = 2
)

// ImportRequest describes one work to resolve or import.
type ImportRequest struct {
	ExternalKey string
	UserID      string
	Status      domain.ImportStatus
	Reason      domain.ImportReason
}

// ImportResult is what Import resolved.
type ImportResult struct {
	Work *domain.Work

	// WasImported is true only when this call created the work row.
	WasImported bool

	// Raced is true when a concurrent import claimed the key first and
	// this call fell back to the winner's row.
	Raced bool

	// InsertedContributorIDs are contributors this call created.
	InsertedContributorIDs []string
}

// Importer resolves an external key to a local work, importing the work,
// its contributors and its tags from the catalog when the key is unknown.
// The staging saga imports provisionally; hybrid search imports confirmed.
type Importer struct {
	store   store.Store
	catalog metadata.Catalog
	logger  *slog.Logger
	now     func() time.Time

	maxTags  int
	fetchers int
}

// NewImporter creates an importer.
func NewImporter(s store.Store, catalog metadata.Catalog, logger *slog.Logger) *Importer {
	return &Importer{
		store:    s,
		catalog:  catalog,
		logger:   logger,
		now:      time.Now,
		maxTags:  defaultMaxTags,
		fetchers: defaultContributorFetchers,
	}
}

// Import returns the local work for req.ExternalKey. A known key returns
// immediately without touching the catalog.
func (im *Importer) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	key := strings.TrimSpace(req.ExternalKey)
	if key == "" {
		return nil, domainerrors.Validation("external key is required")
	}

	// 1. Fast path: already in the catalog.
	if w, err := im.findWork(ctx, key); err != nil || w != nil {
		if err != nil {
			return nil, err
		}
		return &ImportResult{Work: w}, nil
	}

	// 2. Fetch canonical metadata.
	rec, err := im.catalog.FetchWork(ctx, key)
	if err != nil {
		return nil, upstreamError(string(domain.KindWork), key, err)
	}
	if strings.TrimSpace(rec.Title) == "" {
		return nil, domainerrors.NotFoundUpstream(string(domain.KindWork), key,
			errors.New("catalog record has no title"))
	}

	// The catalog may have resolved a merged record to its survivor.
	canonical := key
	if rec.Key != "" && rec.Key != key {
		canonical = rec.Key
		if w, err := im.findWork(ctx, canonical); err != nil || w != nil {
			if err != nil {
				return nil, err
			}
			return &ImportResult{Work: w}, nil
		}
	}

	now := im.now().UTC()
	provenance := domain.Imported(req.Status, req.UserID, req.Reason, now)

	// 3. Contributors: reuse known rows, fetch the rest.
	contributors, err := im.resolveContributors(ctx, rec.ContributorKeys, provenance, now)
	if err != nil {
		return nil, err
	}

	// 4. Tags are always confirmed.
	var tags []store.TagInput
	for _, t := range text.TagSlugs(rec.Subjects, im.maxTags) {
		tags = append(tags, store.TagInput{Slug: t.Slug, Name: t.Label})
	}

	// 5. Claim the key and write the graph.
	for attempt := 1; ; attempt++ {
		workID, err := id.Generate(id.PrefixWork)
		if err != nil {
			return nil, domainerrors.Internal("failed to generate work id").WithCause(err)
		}
		w := &domain.Work{
			Provenance:     provenance,
			ExternalKey:    canonical,
			Title:          strings.TrimSpace(rec.Title),
			Subtitle:       rec.Subtitle,
			Description:    rec.Description,
			FirstPublished: rec.FirstPublished,
		}
		w.ID = workID
		w.InitTimestamps(now)

		res, err := im.store.CreateWorkGraph(ctx, &store.WorkGraph{
			Work:         w,
			Contributors: contributors,
			Tags:         tags,
		})
		if err == nil {
			im.logger.Info("work imported",
				"work_id", res.Work.ID,
				"external_key", canonical,
				"status", req.Status,
				"contributors", len(contributors),
				"new_contributors", len(res.InsertedContributorIDs),
				"tags", len(tags),
			)
			return &ImportResult{
				Work:                   res.Work,
				WasImported:            true,
				InsertedContributorIDs: res.InsertedContributorIDs,
			}, nil
		}
		if !errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.StoreFailure("create work", domainerrors.EntityRef{
				Kind: string(domain.KindWork), ExternalKey: canonical,
			}, err)
		}

		// Lost the race: the winner's row is ours to use.
		existing, ferr := im.findWork(ctx, canonical)
		if ferr != nil {
			return nil, ferr
		}
		if existing != nil {
			im.logger.Debug("import race lost, using existing work",
				"work_id", existing.ID,
				"external_key", canonical,
			)
			return &ImportResult{Work: existing, Raced: true}, nil
		}
		if attempt >= maxClaimAttempts {
			return nil, domainerrors.StoreFailure("create work", domainerrors.EntityRef{
				Kind: string(domain.KindWork), ExternalKey: canonical,
			}, err)
		}
	}
}

// findWork returns nil, nil when the key is unknown.
func (im *Importer) findWork(ctx context.Context, key string) (*domain.Work, error) {
	w, err := im.store.FindWorkByExternalKey(ctx, key)
	switch {
	case err == nil:
		return w, nil
	case errors.Is(err, store.ErrNotFound):
		return nil, nil
	default:
		return nil, domainerrors.StoreFailure("find work", domainerrors.EntityRef{
			Kind: string(domain.KindWork), ExternalKey: key,
		}, err)
	}
}

// resolveContributors returns one contributor per key, in credit order.
// Known rows are reused whatever their status. A contributor the catalog
// does not know is skipped; the work is still importable without it. A
// transient fetch failure fails the import so the credit is not lost.
func (im *Importer) resolveContributors(
	ctx context.Context,
	keys []string,
	provenance domain.Provenance,
	now time.Time,
) ([]*domain.Contributor, error) {
	resolved := make([]*domain.Contributor, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.fetchers)

	var mu sync.Mutex
	skipped := 0

	for i, key := range keys {
		g.Go(func() error {
			existing, err := im.store.FindContributorByExternalKey(gctx, key)
			switch {
			case err == nil:
				// Re-asserted under our provenance so that, should the row
				// vanish before the graph is written, the re-inserted row is
				// attributed to this import.
				c := *existing
				c.Provenance = provenance
				c.InitTimestamps(now)
				resolved[i] = &c
				return nil
			case !errors.Is(err, store.ErrNotFound):
				return domainerrors.StoreFailure("find contributor", domainerrors.EntityRef{
					Kind: string(domain.KindContributor), ExternalKey: key,
				}, err)
			}

			rec, err := im.catalog.FetchContributor(gctx, key)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return upstreamError(string(domain.KindContributor), key, ctxErr)
				}
				if !metadata.IsNotFound(err) {
					return upstreamError(string(domain.KindContributor), key, err)
				}
				im.logger.Warn("contributor not in catalog, skipping",
					"external_key", key,
					"error", err,
				)
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}
			if strings.TrimSpace(rec.Name) == "" {
				return nil
			}

			contributorID, err := id.Generate(id.PrefixContributor)
			if err != nil {
				return domainerrors.Internal("failed to generate contributor id").WithCause(err)
			}
			externalKey := rec.Key
			if externalKey == "" {
				externalKey = key
			}
			c := &domain.Contributor{
				Provenance:  provenance,
				ExternalKey: externalKey,
				Name:        strings.TrimSpace(rec.Name),
				Bio:         rec.Bio,
				BirthDate:   rec.BirthDate,
				DeathDate:   rec.DeathDate,
			}
			c.ID = contributorID
			c.InitTimestamps(now)
			resolved[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*domain.Contributor, 0, len(resolved))
	seen := make(map[string]bool, len(resolved))
	for _, c := range resolved {
		if c == nil || seen[c.ExternalKey] {
			continue
		}
		seen[c.ExternalKey] = true
		out = append(out, c)
	}
	if skipped > 0 {
		im.logger.Warn("some contributors unavailable", "skipped", skipped, "resolved", len(out))
	}
	return out, nil
}

// upstreamError separates "the catalog has no such record" from failures
// worth retrying.
func upstreamError(kind, key string, err error) error {
	if metadata.IsNotFound(err) {
		return domainerrors.NotFoundUpstream(kind, key, err)
	}
	return domainerrors.UpstreamUnavailable(kind, key, err)
}
