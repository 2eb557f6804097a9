package domain

// Work is a primary catalog entity, typically a book as published.
type Work struct {
	Record
	Provenance
	ExternalKey    string `json:"external_key,omitempty"` // unique when present
	Title          string `json:"title"`
	Subtitle       string `json:"subtitle,omitempty"`
	Description    string `json:"description,omitempty"` // Markdown
	FirstPublished string `json:"first_published,omitempty"`

	// Relations, populated by store reads that hydrate the graph.
	Contributors []*Contributor `json:"contributors,omitempty"`
	Tags         []*Tag         `json:"tags,omitempty"`
}

// Kind implements Stageable.
func (w *Work) Kind() EntityKind { return KindWork }

// EntityID implements Stageable.
func (w *Work) EntityID() string { return w.ID }

// Origin implements Stageable.
func (w *Work) Origin() Provenance { return w.Provenance }

// ContributorIDs returns the IDs of the hydrated contributors.
func (w *Work) ContributorIDs() []string {
	ids := make([]string, 0, len(w.Contributors))
	for _, c := range w.Contributors {
		ids = append(ids, c.ID)
	}
	return ids
}
