// Package engagement answers whether a staged entity is depended upon and
// therefore must survive a rollback or sweep.
package engagement

import (
	"context"
	"fmt"
	"log/slog"
)

// CommitmentCounter counts durable references held in the catalog.
type CommitmentCounter interface {
	CountCommitments(ctx context.Context, workID string) (int, error)
}

// ClaimCounter counts live pending actions that still need a work.
type ClaimCounter interface {
	CountClaims(ctx context.Context, workID, excludeSession string) (int, error)
	ClaimedWorkIDs(ctx context.Context) ([]string, error)
}

// Report is the engagement state of one work.
type Report struct {
	Commitments int
	Claims      int // live pending actions from other sessions
}

// Engaged reports whether anything depends on the work.
func (r Report) Engaged() bool {
	return r.Commitments > 0 || r.Claims > 0
}

// Reason names the strongest dependency, or "" when there is none.
func (r Report) Reason() string {
	switch {
	case r.Commitments > 0:
		return "committed"
	case r.Claims > 0:
		return "claimed"
	default:
		return ""
	}
}

// Checker combines commitment counts from the catalog with pending claims.
type Checker struct {
	store  CommitmentCounter
	claims ClaimCounter
	logger *slog.Logger
}

// New creates a Checker.
func New(store CommitmentCounter, claims ClaimCounter, logger *slog.Logger) *Checker {
	return &Checker{store: store, claims: claims, logger: logger}
}

// Work reports what depends on workID. Claims held by excludeSession are
// ignored so a session can roll back its own staging.
func (c *Checker) Work(ctx context.Context, workID, excludeSession string) (Report, error) {
	commitments, err := c.store.CountCommitments(ctx, workID)
	if err != nil {
		return Report{}, fmt.Errorf("count commitments: %w", err)
	}
	report := Report{Commitments: commitments}
	if commitments > 0 {
		return report, nil
	}

	claims, err := c.claims.CountClaims(ctx, workID, excludeSession)
	if err != nil {
		return Report{}, fmt.Errorf("count claims: %w", err)
	}
	report.Claims = claims

	c.logger.Debug("engagement checked",
		"work_id", workID,
		"commitments", report.Commitments,
		"claims", report.Claims,
	)
	return report, nil
}

// ClaimedWorkIDs lists works that a live pending action still needs. Bulk
// reclamation must leave them alone.
func (c *Checker) ClaimedWorkIDs(ctx context.Context) ([]string, error) {
	ids, err := c.claims.ClaimedWorkIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list claimed works: %w", err)
	}
	return ids, nil
}
