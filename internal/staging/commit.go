package staging

import (
	"context"
	"errors"
	"time"

	"github.com/listenupapp/stagehand/internal/domain"
	domainerrors "github.com/listenupapp/stagehand/internal/errors"
	"github.com/listenupapp/stagehand/internal/metrics"
	"github.com/listenupapp/stagehand/internal/pending"
	"github.com/listenupapp/stagehand/internal/store"
)

// CommitResult reports the commitment Commit created.
type CommitResult struct {
	WorkID       string              `json:"work_id"`
	Intent       domain.ActionIntent `json:"intent"`
	CommitmentID string              `json:"commitment_id"`
}

// Commit records payload against the work held by action and clears the
// session's pending action. The action must be the session's current one
// and must not have expired.
func (c *Coordinator) Commit(ctx context.Context, action *domain.PendingAction, payload domain.ActionPayload) (*CommitResult, error) {
	if err := validateHeld(action); err != nil {
		return nil, err
	}

	unlock := c.locks.lock(action.SessionID)
	defer unlock()
	defer c.metrics.Since("commit", time.Now())

	stored, err := c.claim(ctx, action)
	if err != nil {
		if errors.Is(err, domainerrors.ErrStaleSession) {
			c.metrics.Commit(metrics.CommitStale)
		}
		return nil, err
	}

	if err := payload.CheckFor(stored.Intent); err != nil {
		return nil, domainerrors.Validation(err.Error())
	}

	commitment := payload.Commitment(stored.Intent, stored.WorkID, stored.UserID)
	if err := c.store.CreateCommitment(ctx, commitment); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The work was reclaimed underneath the session. Prepare again
			// re-imports it.
			c.take(ctx, stored)
			c.metrics.Commit(metrics.CommitGone)
			return nil, domainerrors.StaleSession("staged work no longer exists").
				WithDetails(domainerrors.EntityRef{Kind: string(domain.KindWork), ID: stored.WorkID, ExternalKey: stored.ExternalKey})
		}
		return nil, domainerrors.StoreFailure("create commitment", domainerrors.EntityRef{
			Kind: string(domain.KindWork), ID: stored.WorkID, ExternalKey: stored.ExternalKey,
		}, err)
	}

	c.take(ctx, stored)
	c.metrics.Commit(metrics.CommitOK)

	c.logger.Info("commit completed",
		"session_id", stored.SessionID,
		"user_id", stored.UserID,
		"work_id", stored.WorkID,
		"intent", stored.Intent,
		"commitment_id", commitment.ID,
	)

	return &CommitResult{
		WorkID:       stored.WorkID,
		Intent:       stored.Intent,
		CommitmentID: commitment.ID,
	}, nil
}

// take clears a pending action after its outcome is durable. Failure only
// leaves a record that expires on its own.
func (c *Coordinator) take(ctx context.Context, pa *domain.PendingAction) {
	if _, err := c.pending.Take(ctx, pa); err != nil &&
		!errors.Is(err, pending.ErrNotFound) && !errors.Is(err, pending.ErrMismatch) {
		c.logger.Warn("failed to clear pending action",
			"session_id", pa.SessionID,
			"action_id", pa.ActionID,
			"error", err,
		)
	}
}
