package openlibrary

import (
	"regexp"
	"strings"
)

var (
	workKeyRe   = regexp.MustCompile(`^OL[0-9]+W$`)
	authorKeyRe = regexp.MustCompile(`^OL[0-9]+A$`)
)

// NormalizeWorkKey accepts "OL45883W", "/works/OL45883W" or
// "works/OL45883W" and returns the bare identifier.
func NormalizeWorkKey(key string) (string, error) {
	return normalizeKey(key, "works", workKeyRe)
}

// NormalizeAuthorKey is NormalizeWorkKey for authors.
func NormalizeAuthorKey(key string) (string, error) {
	return normalizeKey(key, "authors", authorKeyRe)
}

func normalizeKey(key, collection string, re *regexp.Regexp) (string, error) {
	k := strings.TrimSpace(key)
	k = strings.TrimPrefix(k, "/")
	k = strings.TrimPrefix(k, collection+"/")
	k = strings.ToUpper(k)
	if !re.MatchString(k) {
		return "", ErrInvalidKey
	}
	return k, nil
}
