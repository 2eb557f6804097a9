package domain

// Contributor is a person credited on one or more works.
// Its import status is independent of any work that references it: a
// contributor stays when the work that pulled it in is rolled back, as long
// as another work still credits it.
type Contributor struct {
	Record
	Provenance
	ExternalKey string `json:"external_key,omitempty"`
	Name        string `json:"name"`
	Bio         string `json:"bio,omitempty"` // plain text
	BirthDate   string `json:"birth_date,omitempty"`
	DeathDate   string `json:"death_date,omitempty"`
}

// Kind implements Stageable.
func (c *Contributor) Kind() EntityKind { return KindContributor }

// EntityID implements Stageable.
func (c *Contributor) EntityID() string { return c.ID }

// Origin implements Stageable.
func (c *Contributor) Origin() Provenance { return c.Provenance }
