package domain

import "fmt"

// SearchMode selects which field a catalog search matches against.
type SearchMode string

const (
	SearchByTitle       SearchMode = "title"
	SearchByContributor SearchMode = "contributor"
	SearchByTag         SearchMode = "tag"
)

// ParseSearchMode converts a string to a SearchMode. Empty means title.
func ParseSearchMode(s string) (SearchMode, error) {
	switch SearchMode(s) {
	case "":
		return SearchByTitle, nil
	case SearchByTitle, SearchByContributor, SearchByTag:
		return SearchMode(s), nil
	default:
		return "", fmt.Errorf("unknown search mode %q", s)
	}
}
