// Package util provides small string helpers shared by the store and services.
package util

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	nonAlphanumericRe = regexp.MustCompile(`[^a-z0-9]+`)
	multipleDashRe    = regexp.MustCompile(`-+`)
)

// maxSlugLen keeps story directory names well under common filesystem limits.
const maxSlugLen = 60

// Slugify converts a title to an ASCII, dash separated slug.
//
//	"Harry Potter and the Méthods of Rationality" -> "harry-potter-and-the-methods-of-rationality"
//	"Sci-Fi/Fantasy" -> "sci-fi-fantasy"
func Slugify(s string) string {
	s = norm.NFKD.String(s)
	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)
	s = strings.ToLower(s)
	s = nonAlphanumericRe.ReplaceAllString(s, "-")
	s = multipleDashRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	if len(s) > maxSlugLen {
		s = strings.TrimRight(s[:maxSlugLen], "-")
	}
	return s
}

// StoryDirName builds the unique directory name a story is downloaded into.
// The site and remote id keep it unique; the slug keeps it readable.
func StoryDirName(site, siteID, title string) string {
	slug := Slugify(title)
	if slug == "" {
		return fmt.Sprintf("%s-%s", site, siteID)
	}
	return fmt.Sprintf("%s-%s-%s", site, siteID, slug)
}

// NameKey returns the case-folded form of a name used for case-insensitive ordering.
func NameKey(name string) string {
	return cases.Fold().String(norm.NFC.String(name))
}
