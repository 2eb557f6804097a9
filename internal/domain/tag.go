package domain

import "time"

// Tag is a shared classification label. Tags are always confirmed: they carry
// no ownership and are never rolled back or swept.
type Tag struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"` // lowercase, hyphenated
	Name      string    `json:"name"` // label as the catalog spelled it
	CreatedAt time.Time `json:"created_at"`
}
