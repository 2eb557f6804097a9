package domain

import "time"

// DefaultPendingTTL is how long a staged action may wait for Commit or Rollback.
const DefaultPendingTTL = 30 * time.Minute

// PendingAction is the session-scoped handle linking Prepare to a later
// Commit or Rollback. Callers hold it between requests and hand it back
// unchanged; a session has at most one at a time.
type PendingAction struct {
	ActionID    string       `json:"action_id"`
	SessionID   string       `json:"session_id"`
	UserID      string       `json:"user_id"`
	WorkID      string       `json:"work_id"`
	ExternalKey string       `json:"external_key"`
	WasImported bool         `json:"was_imported"`
	Intent      ActionIntent `json:"intent"`
	CreatedAt   time.Time    `json:"created_at"`

	// Contributors inserted by this saga. Only these are candidates for
	// deletion on Rollback.
	ImportedContributorIDs []string `json:"imported_contributor_ids,omitempty"`
}

// ExpiresAt returns when the action goes stale.
func (p *PendingAction) ExpiresAt(ttl time.Duration) time.Time {
	return p.CreatedAt.Add(ttl)
}

// IsExpired reports whether the action is stale at now.
func (p *PendingAction) IsExpired(now time.Time, ttl time.Duration) bool {
	return !now.Before(p.ExpiresAt(ttl))
}

// Matches reports whether other refers to the same staged action.
func (p *PendingAction) Matches(other *PendingAction) bool {
	return other != nil &&
		p.ActionID == other.ActionID &&
		p.SessionID == other.SessionID &&
		p.WorkID == other.WorkID
}
