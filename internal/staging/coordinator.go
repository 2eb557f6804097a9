// Package staging runs the staged-import saga: Prepare imports a work
// provisionally and records a pending action for the session, Commit turns
// the pending action into a durable commitment, Rollback discards what
// Prepare created unless something now depends on it, and Sweep reclaims
// whatever abandoned sessions left behind.
package staging

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/listenupapp/stagehand/internal/domain"
	"github.com/listenupapp/stagehand/internal/engagement"
	domainerrors "github.com/listenupapp/stagehand/internal/errors"
	"github.com/listenupapp/stagehand/internal/id"
	"github.com/listenupapp/stagehand/internal/metadata"
	"github.com/listenupapp/stagehand/internal/metrics"
	"github.com/listenupapp/stagehand/internal/pending"
	"github.com/listenupapp/stagehand/internal/store"
)

// DefaultSweepThreshold is how old an unclaimed provisional row must be
// before Sweep reclaims it.
const DefaultSweepThreshold = 60 * time.Minute

// maxPrepareAttempts bounds how often Prepare re-imports a work that was
// reclaimed between resolving it and claiming it.
const maxPrepareAttempts = 3

// PendingStore holds the one pending action each session may have.
type PendingStore interface {
	Get(ctx context.Context, sessionID string) (*domain.PendingAction, error)
	Put(ctx context.Context, pa *domain.PendingAction) (*domain.PendingAction, error)
	Take(ctx context.Context, expected *domain.PendingAction) (*domain.PendingAction, error)
}

// Config configures a Coordinator.
type Config struct {
	PendingTTL time.Duration
}

// Coordinator is the saga engine. It is the only component that creates or
// deletes provisional rows.
type Coordinator struct {
	store    store.Store
	pending  PendingStore
	checker  *engagement.Checker
	importer *Importer
	metrics  *metrics.Metrics
	logger   *slog.Logger

	ttl   time.Duration
	now   func() time.Time
	locks *keyedLocks // per session
	works *keyedLocks // per work: claim recording against deletion

	// reclaim is held shared while a single work is claimed or deleted and
	// exclusively while Sweep picks and deletes unclaimed works.
	reclaim sync.RWMutex
}

// NewCoordinator creates a Coordinator. m may be nil.
func NewCoordinator(
	s store.Store,
	catalog metadata.Catalog,
	pendingStore PendingStore,
	checker *engagement.Checker,
	m *metrics.Metrics,
	cfg Config,
	logger *slog.Logger,
) *Coordinator {
	ttl := cfg.PendingTTL
	if ttl <= 0 {
		ttl = domain.DefaultPendingTTL
	}
	return &Coordinator{
		store:    s,
		pending:  pendingStore,
		checker:  checker,
		importer: NewImporter(s, catalog, logger),
		metrics:  m,
		logger:   logger,
		ttl:      ttl,
		now:      time.Now,
		locks:    newKeyedLocks(),
		works:    newKeyedLocks(),
	}
}

// SetClock replaces the coordinator's clock, including the one used to
// stamp imported rows.
func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
	c.importer.now = now
}

// Importer returns the importer the coordinator uses, for callers that need
// confirmed imports outside the saga.
func (c *Coordinator) Importer() *Importer {
	return c.importer
}

// TTL returns the pending action lifetime.
func (c *Coordinator) TTL() time.Duration {
	return c.ttl
}

// PrepareRequest starts a saga.
type PrepareRequest struct {
	ExternalKey string              `json:"external_key" validate:"required,catalogkey"`
	UserID      string              `json:"-"`
	SessionID   string              `json:"-"`
	Intent      domain.ActionIntent `json:"intent" validate:"required,oneof=rate review add_to_list"`
}

// PrepareResult is what the caller needs to continue the saga.
// WasImported describes this call only. CanRollback also covers a row
// imported by an earlier Prepare of the same work in this session.
type PrepareResult struct {
	Work        *domain.Work          `json:"work"`
	WasImported bool                  `json:"was_imported"`
	CanRollback bool                  `json:"can_rollback"`
	Action      *domain.PendingAction `json:"pending_action"`

	// Superseded is the action this Prepare replaced, if any.
	Superseded *SupersededAction `json:"superseded,omitempty"`
}

// SupersededAction reports what happened to a replaced pending action.
type SupersededAction struct {
	ActionID  string          `json:"action_id"`
	WorkID    string          `json:"work_id"`
	Refreshed bool            `json:"refreshed"`
	Rollback  *RollbackResult `json:"rollback,omitempty"`
}

// Prepare resolves req.ExternalKey to a local work, importing it as
// provisional when it is new, and records the session's pending action.
//
// A session holds one pending action. An outstanding action for the same
// work is refreshed in place; one for a different work is rolled back first.
func (c *Coordinator) Prepare(ctx context.Context, req PrepareRequest) (*PrepareResult, error) {
	if err := validatePrepare(req); err != nil {
		return nil, err
	}

	unlock := c.locks.lock(req.SessionID)
	defer unlock()
	defer c.metrics.Since("prepare", time.Now())

	var (
		imported   *ImportResult
		action     *domain.PendingAction
		superseded *SupersededAction
	)
	for attempt := 1; ; attempt++ {
		// 1. Resolve or import.
		var err error
		imported, err = c.importer.Import(ctx, ImportRequest{
			ExternalKey: req.ExternalKey,
			UserID:      req.UserID,
			Status:      domain.StatusProvisional,
			Reason:      req.Intent.ImportReason(),
		})
		if err != nil {
			c.metrics.Prepare(metrics.PrepareFailed)
			return nil, err
		}

		action = &domain.PendingAction{
			ActionID:               id.NewActionID(),
			SessionID:              req.SessionID,
			UserID:                 req.UserID,
			WorkID:                 imported.Work.ID,
			ExternalKey:            imported.Work.ExternalKey,
			WasImported:            imported.WasImported,
			Intent:                 req.Intent,
			CreatedAt:              c.now().UTC(),
			ImportedContributorIDs: imported.InsertedContributorIDs,
		}

		// 2. Reconcile any outstanding action.
		prev, err := c.supersede(ctx, action)
		if err != nil {
			c.metrics.Prepare(metrics.PrepareFailed)
			return nil, err
		}
		if superseded == nil {
			superseded = prev
		}

		// 3. Record the claim, then make sure the work outlived it.
		held, err := c.record(ctx, action)
		if err != nil {
			c.metrics.Prepare(metrics.PrepareFailed)
			return nil, err
		}
		if held {
			break
		}
		if attempt == maxPrepareAttempts {
			c.metrics.Prepare(metrics.PrepareFailed)
			return nil, domainerrors.Conflict("staged work keeps being reclaimed, try again").
				WithDetails(domainerrors.EntityRef{Kind: string(domain.KindWork), ExternalKey: req.ExternalKey})
		}
		c.logger.Info("staged work reclaimed before claim, importing again",
			"session_id", req.SessionID,
			"work_id", action.WorkID,
			"external_key", action.ExternalKey,
			"attempt", attempt,
		)
	}

	switch {
	case imported.WasImported:
		c.metrics.Prepare(metrics.PrepareImported)
	case imported.Raced:
		c.metrics.Prepare(metrics.PrepareRaced)
	default:
		c.metrics.Prepare(metrics.PrepareFound)
	}

	c.logger.Info("prepare completed",
		"session_id", req.SessionID,
		"user_id", req.UserID,
		"work_id", action.WorkID,
		"external_key", action.ExternalKey,
		"was_imported", action.WasImported,
		"intent", req.Intent,
	)

	return &PrepareResult{
		Work:        imported.Work,
		WasImported: imported.WasImported,
		CanRollback: action.WasImported,
		Action:      action,
		Superseded:  superseded,
	}, nil
}

// supersede reconciles the session's outstanding action with next. When
// both target the same work, next inherits what the earlier Prepare
// imported so a later Rollback still cleans it up.
func (c *Coordinator) supersede(ctx context.Context, next *domain.PendingAction) (*SupersededAction, error) {
	prev, err := c.pending.Get(ctx, next.SessionID)
	if errors.Is(err, pending.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domainerrors.StoreFailure("read pending action", domainerrors.EntityRef{}, err)
	}

	if prev.WorkID == next.WorkID {
		next.WasImported = next.WasImported || prev.WasImported
		next.ImportedContributorIDs = mergeIDs(prev.ImportedContributorIDs, next.ImportedContributorIDs)
		c.logger.Debug("pending action refreshed",
			"session_id", next.SessionID,
			"work_id", next.WorkID,
			"previous_action_id", prev.ActionID,
		)
		return &SupersededAction{ActionID: prev.ActionID, WorkID: prev.WorkID, Refreshed: true}, nil
	}

	result, err := c.rollbackStored(ctx, prev)
	if err != nil {
		// The new saga goes ahead; whatever the old one left is reclaimed
		// by the sweep.
		c.logger.Warn("superseded rollback failed",
			"session_id", prev.SessionID,
			"work_id", prev.WorkID,
			"error", err,
		)
		return &SupersededAction{ActionID: prev.ActionID, WorkID: prev.WorkID}, nil
	}
	return &SupersededAction{ActionID: prev.ActionID, WorkID: prev.WorkID, Rollback: result}, nil
}

// record stores action as the session's claim on its work. It returns false
// when the work was deleted before the claim became visible; the action is
// cleared again in that case. Deleters take the same work lock, so once
// record returns true every later engagement check sees the claim.
func (c *Coordinator) record(ctx context.Context, action *domain.PendingAction) (bool, error) {
	c.reclaim.RLock()
	defer c.reclaim.RUnlock()
	unlock := c.works.lock(action.WorkID)
	defer unlock()

	ref := domainerrors.EntityRef{Kind: string(domain.KindWork), ID: action.WorkID, ExternalKey: action.ExternalKey}
	if _, err := c.pending.Put(ctx, action); err != nil {
		return false, domainerrors.StoreFailure("record pending action", ref, err)
	}

	_, err := c.store.GetWork(ctx, action.WorkID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		c.take(ctx, action)
		return false, nil
	default:
		c.take(ctx, action)
		return false, domainerrors.StoreFailure("reload work", ref, err)
	}
}

// claim loads the session's stored action and checks that it is the one the
// caller holds and that it is still live. The stored copy is authoritative.
func (c *Coordinator) claim(ctx context.Context, held *domain.PendingAction) (*domain.PendingAction, error) {
	stored, err := c.pending.Get(ctx, held.SessionID)
	if errors.Is(err, pending.ErrNotFound) {
		return nil, domainerrors.StaleSession("no pending action for session").
			WithDetails(domainerrors.EntityRef{Kind: string(domain.KindWork), ID: held.WorkID})
	}
	if err != nil {
		return nil, domainerrors.StoreFailure("read pending action", domainerrors.EntityRef{
			Kind: string(domain.KindWork), ID: held.WorkID,
		}, err)
	}
	if !stored.Matches(held) {
		return nil, domainerrors.StaleSession("pending action was superseded").
			WithDetails(domainerrors.EntityRef{Kind: string(domain.KindWork), ID: held.WorkID})
	}
	if stored.IsExpired(c.now(), c.ttl) {
		return nil, domainerrors.StaleSession("pending action expired").
			WithDetails(domainerrors.EntityRef{Kind: string(domain.KindWork), ID: stored.WorkID, ExternalKey: stored.ExternalKey})
	}
	return stored, nil
}

func validatePrepare(req PrepareRequest) error {
	switch {
	case strings.TrimSpace(req.ExternalKey) == "":
		return domainerrors.Validation("external key is required")
	case req.UserID == "":
		return domainerrors.Unauthorized("a session principal is required")
	case req.SessionID == "":
		return domainerrors.Unauthorized("a session is required")
	case !req.Intent.IsValid():
		return domainerrors.Validationf("unknown intent %q", req.Intent)
	}
	return nil
}

func validateHeld(pa *domain.PendingAction) error {
	switch {
	case pa == nil:
		return domainerrors.Validation("pending action is required")
	case pa.ActionID == "" || pa.WorkID == "":
		return domainerrors.Validation("pending action is incomplete")
	case pa.SessionID == "":
		return domainerrors.Unauthorized("a session is required")
	}
	return nil
}

func mergeIDs(a, b []string) []string {
	if len(a) == 0 {
		return b
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}
