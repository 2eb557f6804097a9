// Package text normalizes strings that arrive from the external catalog:
// classification labels become tag slugs, descriptions become Markdown and
// biographies become plain text.
package text

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	wordSeparatorRe   = regexp.MustCompile(`[\s_/&,.]+`)
	nonAlphanumericRe = regexp.MustCompile(`[^a-z0-9-]`)
	multipleDashRe    = regexp.MustCompile(`-+`)
)

// Slug converts a classification label to a canonical tag slug. Accents are
// folded to ASCII before anything else is removed, so labels that differ
// only in diacritics share a tag.
//
//	"Science Fiction"        → "science-fiction"
//	"Ciencia ficción"        → "ciencia-ficcion"
//	"Fiction, fantasy, epic" → "fiction-fantasy-epic"
//	"🐉 Dragons!"            → "dragons"
func Slug(label string) string {
	s := norm.NFKD.String(strings.TrimSpace(label))
	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII || unicode.Is(unicode.Mn, r) {
			return -1
		}
		return r
	}, s)
	s = strings.ToLower(s)
	s = wordSeparatorRe.ReplaceAllString(s, "-")
	s = nonAlphanumericRe.ReplaceAllString(s, "")
	s = multipleDashRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// maxSlugLen bounds tag slugs; catalog subjects occasionally run to whole
// sentences.
const maxSlugLen = 64

// TagSlugs turns labels into unique, bounded slugs, keeping first-seen order
// and dropping labels that normalize to nothing.
func TagSlugs(labels []string, limit int) []LabeledSlug {
	seen := make(map[string]bool, len(labels))
	out := make([]LabeledSlug, 0, len(labels))
	for _, label := range labels {
		slug := Slug(label)
		if len(slug) > maxSlugLen {
			slug = strings.TrimRight(slug[:maxSlugLen], "-")
		}
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		out = append(out, LabeledSlug{Slug: slug, Label: strings.TrimSpace(label)})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// LabeledSlug pairs a slug with the label it came from.
type LabeledSlug struct {
	Slug  string
	Label string
}
