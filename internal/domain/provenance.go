package domain

import "time"

// ImportStatus tracks whether a catalog row is backed by a user commitment.
type ImportStatus string

const (
	// StatusConfirmed rows were created outside a saga, or have since been
	// committed to. They are never reclaimed.
	StatusConfirmed ImportStatus = "confirmed"
	// StatusProvisional rows are a claim in progress and may be rolled back or swept.
	StatusProvisional ImportStatus = "provisional"
)

// IsValid checks if the status is a recognized value.
func (s ImportStatus) IsValid() bool {
	return s == StatusConfirmed || s == StatusProvisional
}

// ImportReason records which action pulled a row in from the external catalog.
type ImportReason string

const (
	ReasonRate      ImportReason = "rate"
	ReasonReview    ImportReason = "review"
	ReasonAddToList ImportReason = "add_to_list"
	// ReasonSearch marks rows imported because they surfaced in hybrid search.
	ReasonSearch ImportReason = "search"
)

// Provenance describes how a row entered the catalog. Rows created locally
// carry only a status; imported rows also carry who, when, and why.
type Provenance struct {
	Status     ImportStatus `json:"import_status"`
	ImportedBy string       `json:"imported_by,omitempty"`
	ImportedAt *time.Time   `json:"imported_at,omitempty"`
	Reason     ImportReason `json:"import_reason,omitempty"`
}

// IsProvisional reports whether the row is still a claim in progress.
func (p Provenance) IsProvisional() bool {
	return p.Status == StatusProvisional
}

// Imported returns provenance for a row imported now by userID.
func Imported(status ImportStatus, userID string, reason ImportReason, now time.Time) Provenance {
	at := now.UTC()
	return Provenance{
		Status:     status,
		ImportedBy: userID,
		ImportedAt: &at,
		Reason:     reason,
	}
}
