package domain

import (
	"fmt"
	"time"
)

// ActionIntent names the user action a saga is staging.
type ActionIntent string

const (
	IntentRate      ActionIntent = "rate"
	IntentReview    ActionIntent = "review"
	IntentAddToList ActionIntent = "add_to_list"
)

// IsValid checks if the intent is a recognized value.
func (i ActionIntent) IsValid() bool {
	switch i {
	case IntentRate, IntentReview, IntentAddToList:
		return true
	default:
		return false
	}
}

// ImportReason maps an intent to the reason recorded on imported rows.
func (i ActionIntent) ImportReason() ImportReason {
	return ImportReason(i)
}

// CommitmentKind returns the kind of commitment the intent produces.
func (i ActionIntent) CommitmentKind() CommitmentKind {
	switch i {
	case IntentRate:
		return CommitmentRating
	case IntentReview:
		return CommitmentReview
	default:
		return CommitmentListEntry
	}
}

// CommitmentKind is the type of durable user record attached to a work.
type CommitmentKind string

const (
	CommitmentRating    CommitmentKind = "rating"
	CommitmentReview    CommitmentKind = "review"
	CommitmentListEntry CommitmentKind = "list_entry"
)

// Commitment is a rating, review, or list entry referencing a work. Its
// existence is the authoritative signal that the work must be kept.
type Commitment struct {
	ID        string         `json:"id"`
	Kind      CommitmentKind `json:"kind"`
	WorkID    string         `json:"work_id"`
	UserID    string         `json:"user_id"`
	Rating    int            `json:"rating,omitempty"`
	Body      string         `json:"body,omitempty"`
	ListName  string         `json:"list_name,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ActionPayload is the concrete user action delivered on Commit.
type ActionPayload struct {
	Rating     int    `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	ReviewText string `json:"review_text,omitempty" validate:"omitempty,max=20000"`
	ListName   string `json:"list_name,omitempty" validate:"omitempty,max=100"`
}

// CheckFor verifies the payload carries what intent needs.
func (p ActionPayload) CheckFor(intent ActionIntent) error {
	switch intent {
	case IntentRate:
		if p.Rating < 1 || p.Rating > 5 {
			return fmt.Errorf("rate requires a rating between 1 and 5, got %d", p.Rating)
		}
	case IntentReview:
		if p.ReviewText == "" {
			return fmt.Errorf("review requires review text")
		}
	case IntentAddToList:
		if p.ListName == "" {
			return fmt.Errorf("add_to_list requires a list name")
		}
	default:
		return fmt.Errorf("unknown intent %q", intent)
	}
	return nil
}

// Commitment builds the commitment this payload records for intent.
func (p ActionPayload) Commitment(intent ActionIntent, workID, userID string) *Commitment {
	c := &Commitment{
		Kind:   intent.CommitmentKind(),
		WorkID: workID,
		UserID: userID,
	}
	switch c.Kind {
	case CommitmentRating:
		c.Rating = p.Rating
	case CommitmentReview:
		c.Rating = p.Rating
		c.Body = p.ReviewText
	case CommitmentListEntry:
		c.ListName = p.ListName
	}
	return c
}
