package domain

import "fmt"

// EntityKind is the closed set of catalog entity types the saga can stage.
// Tags are deliberately absent.
type EntityKind string

const (
	KindWork        EntityKind = "work"
	KindContributor EntityKind = "contributor"
)

// StageableKinds lists every kind in reclamation order: works before the
// contributors they reference.
var StageableKinds = []EntityKind{KindWork, KindContributor}

func (k EntityKind) String() string { return string(k) }

// ParseEntityKind converts a string to an EntityKind.
func ParseEntityKind(s string) (EntityKind, error) {
	switch EntityKind(s) {
	case KindWork, KindContributor:
		return EntityKind(s), nil
	default:
		return "", fmt.Errorf("unknown entity kind %q", s)
	}
}

// Stageable is implemented by every entity that can be imported provisionally.
type Stageable interface {
	Kind() EntityKind
	EntityID() string
	Origin() Provenance
}
