// Package search keeps a Bleve full-text index of catalog works and merges
// its results with live external catalog hits.
package search

import (
	"strconv"

	"github.com/listenupapp/stagehand/internal/domain"
)

// WorkDocument is the indexed form of a work. Contributor names and tag
// slugs are denormalized onto it so a single query covers every search mode.
type WorkDocument struct {
	ID           string   `json:"id"`
	ExternalKey  string   `json:"external_key,omitempty"`
	Title        string   `json:"title"`
	Subtitle     string   `json:"subtitle,omitempty"`
	Description  string   `json:"description,omitempty"`
	Contributors []string `json:"contributors,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	PublishYear  int      `json:"publish_year,omitempty"`
	CreatedAt    int64    `json:"created_at"` // Unix millis
}

// NewWorkDocument builds the document for w. Relations must be hydrated.
func NewWorkDocument(w *domain.Work) *WorkDocument {
	doc := &WorkDocument{
		ID:          w.ID,
		ExternalKey: w.ExternalKey,
		Title:       w.Title,
		Subtitle:    w.Subtitle,
		Description: w.Description,
		PublishYear: parseYear(w.FirstPublished),
		CreatedAt:   w.CreatedAt.UnixMilli(),
	}
	for _, c := range w.Contributors {
		doc.Contributors = append(doc.Contributors, c.Name)
	}
	for _, t := range w.Tags {
		doc.Tags = append(doc.Tags, t.Slug)
	}
	return doc
}

// ToMap converts the document to the field names the mapping declares.
func (d *WorkDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"title":      d.Title,
		"created_at": d.CreatedAt,
	}
	if d.ExternalKey != "" {
		m["external_key"] = d.ExternalKey
	}
	if d.Subtitle != "" {
		m["subtitle"] = d.Subtitle
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	if len(d.Contributors) > 0 {
		m["contributors"] = d.Contributors
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}
	if d.PublishYear > 0 {
		m["publish_year"] = d.PublishYear
	}
	return m
}

// parseYear extracts a year from catalog dates such as "1954",
// "July 29, 1954" or "1954-07-29". Returns 0 when none is found.
func parseYear(s string) int {
	for i := 0; i+4 <= len(s); i++ {
		run := s[i : i+4]
		if !allDigits(run) {
			continue
		}
		if i+4 < len(s) && isDigit(s[i+4]) {
			continue
		}
		if i > 0 && isDigit(s[i-1]) {
			continue
		}
		year, err := strconv.Atoi(run)
		if err == nil && year > 0 {
			return year
		}
	}
	return 0
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
