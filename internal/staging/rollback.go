package staging

import (
	"context"
	"errors"
	"time"

	"github.com/listenupapp/stagehand/internal/domain"
	"github.com/listenupapp/stagehand/internal/engagement"
	domainerrors "github.com/listenupapp/stagehand/internal/errors"
	"github.com/listenupapp/stagehand/internal/metrics"
	"github.com/listenupapp/stagehand/internal/pending"
	"github.com/listenupapp/stagehand/internal/store"
)

// Rollback outcome reasons. An empty reason means the work was deleted.
const (
	ReasonNotImported = "not_imported"
	ReasonEngaged     = "engaged"
	ReasonGone        = "gone"
)

// RollbackResult reports what Rollback did. Declining to delete an engaged
// work is a normal outcome, not an error.
type RollbackResult struct {
	RolledBack          bool   `json:"rolled_back"`
	Reason              string `json:"reason,omitempty"`
	Commitments         int    `json:"commitments,omitempty"`
	Claims              int    `json:"claims,omitempty"`
	DeletedContributors int    `json:"deleted_contributors,omitempty"`
}

// Rollback discards what the Prepare behind action created, unless a
// commitment or another session's pending action now depends on it.
// The session's pending action is cleared whatever the outcome.
func (c *Coordinator) Rollback(ctx context.Context, action *domain.PendingAction) (*RollbackResult, error) {
	if err := validateHeld(action); err != nil {
		return nil, err
	}

	unlock := c.locks.lock(action.SessionID)
	defer unlock()
	defer c.metrics.Since("rollback", time.Now())

	stored, err := c.claim(ctx, action)
	if err != nil {
		if errors.Is(err, domainerrors.ErrStaleSession) {
			c.metrics.Rollback(metrics.RollbackStale)
		}
		return nil, err
	}

	return c.rollbackStored(ctx, stored)
}

// rollbackStored runs the rollback for an action already known to be the
// session's current one. The caller holds the session lock.
func (c *Coordinator) rollbackStored(ctx context.Context, pa *domain.PendingAction) (*RollbackResult, error) {
	ref := domainerrors.EntityRef{Kind: string(domain.KindWork), ID: pa.WorkID, ExternalKey: pa.ExternalKey}

	// 1. Clear the pending action first so exactly one caller proceeds.
	if _, err := c.pending.Take(ctx, pa); err != nil {
		if errors.Is(err, pending.ErrNotFound) || errors.Is(err, pending.ErrMismatch) {
			c.metrics.Rollback(metrics.RollbackStale)
			return nil, domainerrors.StaleSession("pending action already resolved").WithDetails(ref)
		}
		return nil, domainerrors.StoreFailure("clear pending action", ref, err)
	}

	// 2. Nothing was created, nothing is destroyed.
	if !pa.WasImported {
		c.metrics.Rollback(metrics.RollbackNoop)
		c.logger.Info("rollback skipped, work pre-existed",
			"session_id", pa.SessionID,
			"work_id", pa.WorkID,
		)
		return &RollbackResult{Reason: ReasonNotImported}, nil
	}

	// 3. Engagement check and conditional delete, as one step against
	// claims being recorded on the same work.
	report, deleted, err := c.deleteUnengaged(ctx, pa, ref)
	if err != nil {
		return nil, err
	}
	if report.Engaged() {
		c.metrics.Rollback(metrics.RollbackEngaged)
		c.logger.Info("rollback declined, work engaged",
			"session_id", pa.SessionID,
			"work_id", pa.WorkID,
			"reason", report.Reason(),
			"commitments", report.Commitments,
			"claims", report.Claims,
		)
		return &RollbackResult{
			Reason:      ReasonEngaged,
			Commitments: report.Commitments,
			Claims:      report.Claims,
		}, nil
	}

	if !deleted {
		return c.explainKept(ctx, pa, ref)
	}

	// 4. Contributors this saga inserted go too, if nothing else credits them.
	removed := 0
	for _, contributorID := range pa.ImportedContributorIDs {
		ok, err := c.store.DeleteIfUnengaged(ctx, domain.KindContributor, contributorID)
		if err != nil {
			c.logger.Warn("contributor cleanup failed, leaving it to sweep",
				"contributor_id", contributorID,
				"work_id", pa.WorkID,
				"error", err,
			)
			continue
		}
		if ok {
			removed++
		}
	}

	c.metrics.Rollback(metrics.RollbackDeleted)
	c.logger.Info("rollback deleted work",
		"session_id", pa.SessionID,
		"work_id", pa.WorkID,
		"external_key", pa.ExternalKey,
		"contributors_deleted", removed,
		"contributors_kept", len(pa.ImportedContributorIDs)-removed,
	)

	return &RollbackResult{RolledBack: true, DeletedContributors: removed}, nil
}

// deleteUnengaged deletes the saga's work unless another session claims it
// or a commitment references it. Claims live outside the catalog, so they
// are checked under the work lock that record also takes. A commitment that
// lands after the check still wins inside the conditional delete.
func (c *Coordinator) deleteUnengaged(ctx context.Context, pa *domain.PendingAction, ref domainerrors.EntityRef) (engagement.Report, bool, error) {
	c.reclaim.RLock()
	defer c.reclaim.RUnlock()
	unlock := c.works.lock(pa.WorkID)
	defer unlock()

	report, err := c.checker.Work(ctx, pa.WorkID, pa.SessionID)
	if err != nil {
		return engagement.Report{}, false, domainerrors.StoreFailure("check engagement", ref, err)
	}
	if report.Engaged() {
		return report, false, nil
	}

	deleted, err := c.store.DeleteIfUnengaged(ctx, domain.KindWork, pa.WorkID)
	if err != nil {
		return report, false, domainerrors.StoreFailure("delete work", ref, err)
	}
	return report, deleted, nil
}

// explainKept reports why the conditional delete left the work in place.
func (c *Coordinator) explainKept(ctx context.Context, pa *domain.PendingAction, ref domainerrors.EntityRef) (*RollbackResult, error) {
	w, err := c.store.GetWork(ctx, pa.WorkID)
	if errors.Is(err, store.ErrNotFound) {
		c.metrics.Rollback(metrics.RollbackNoop)
		return &RollbackResult{Reason: ReasonGone}, nil
	}
	if err != nil {
		return nil, domainerrors.StoreFailure("reload work", ref, err)
	}

	c.metrics.Rollback(metrics.RollbackEngaged)
	c.logger.Info("rollback declined, work engaged during rollback",
		"session_id", pa.SessionID,
		"work_id", pa.WorkID,
		"import_status", w.Status,
	)
	commitments, err := c.store.CountCommitments(ctx, pa.WorkID)
	if err != nil {
		c.logger.Warn("failed to count commitments on kept work",
			"work_id", pa.WorkID,
			"error", err,
		)
	}
	return &RollbackResult{Reason: ReasonEngaged, Commitments: commitments}, nil
}
