package staging

import (
	"context"
	"time"

	"github.com/listenupapp/stagehand/internal/domain"
	domainerrors "github.com/listenupapp/stagehand/internal/errors"
	"github.com/listenupapp/stagehand/internal/store"
)

// SweepResult reports what a sweep reclaimed.
type SweepResult struct {
	DeletedCount   int       `json:"deleted_count"`
	WorkIDs        []string  `json:"work_ids"`
	ContributorIDs []string  `json:"contributor_ids"`
	Cutoff         time.Time `json:"cutoff"`
}

// Sweep deletes provisional works and contributors imported more than
// olderThan ago that nothing depends on. Works still claimed by a live
// pending action are kept. Contributors are swept after works, so those
// orphaned by this pass go in the same pass.
func (c *Coordinator) Sweep(ctx context.Context, olderThan time.Duration) (*SweepResult, error) {
	if olderThan <= 0 {
		olderThan = DefaultSweepThreshold
	}
	defer c.metrics.Since("sweep", time.Now())

	cutoff := c.now().UTC().Add(-olderThan)

	keep, works, err := c.sweepWorks(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	contributors, err := c.store.SweepProvisional(ctx, domain.KindContributor, cutoff, nil)
	if err != nil {
		return nil, domainerrors.StoreFailure("sweep contributors", domainerrors.EntityRef{Kind: string(domain.KindContributor)}, err)
	}

	c.metrics.Sweep(len(works), len(contributors))

	result := &SweepResult{
		DeletedCount:   len(works) + len(contributors),
		WorkIDs:        works,
		ContributorIDs: contributors,
		Cutoff:         cutoff,
	}

	if result.DeletedCount > 0 {
		c.logger.Info("sweep completed",
			"works_deleted", len(works),
			"contributors_deleted", len(contributors),
			"claimed_kept", len(keep),
			"cutoff", cutoff,
		)
	} else {
		c.logger.Debug("sweep completed, nothing to reclaim", "cutoff", cutoff)
	}
	return result, nil
}

// sweepWorks deletes unclaimed provisional works stamped before cutoff. No
// claim can be recorded between reading the claimed set and the delete.
func (c *Coordinator) sweepWorks(ctx context.Context, cutoff time.Time) (keep, deleted []string, err error) {
	c.reclaim.Lock()
	defer c.reclaim.Unlock()

	keep, err = c.checker.ClaimedWorkIDs(ctx)
	if err != nil {
		return nil, nil, domainerrors.StoreFailure("list claimed works", domainerrors.EntityRef{}, err)
	}

	deleted, err = c.store.SweepProvisional(ctx, domain.KindWork, cutoff, keep)
	if err != nil {
		return nil, nil, domainerrors.StoreFailure("sweep works", domainerrors.EntityRef{Kind: string(domain.KindWork)}, err)
	}
	return keep, deleted, nil
}

// Provisional lists provisional rows of every stageable kind imported more
// than olderThan ago. Zero lists all of them.
func (c *Coordinator) Provisional(ctx context.Context, olderThan time.Duration) ([]store.ProvisionalRow, error) {
	cutoff := c.now().UTC().Add(-olderThan)
	if olderThan <= 0 {
		// Rows stamped in the same instant still count.
		cutoff = c.now().UTC().Add(time.Nanosecond)
	}

	var rows []store.ProvisionalRow
	for _, kind := range domain.StageableKinds {
		batch, err := c.store.ListProvisional(ctx, kind, cutoff)
		if err != nil {
			return nil, domainerrors.StoreFailure("list provisional", domainerrors.EntityRef{Kind: string(kind)}, err)
		}
		rows = append(rows, batch...)
	}
	return rows, nil
}
