package library

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// Matches spaces, underscores, and slashes, all replaced with dashes.
	slugSeparatorPattern = regexp.MustCompile(`[\s_/]+`)
	// Matches characters outside the slug alphabet (lowercase alphanumerics and dashes).
	slugInvalidPattern = regexp.MustCompile(`[^a-z0-9-]`)
	// Matches runs of consecutive dashes.
	slugDashRunPattern = regexp.MustCompile(`-+`)
)

// Slugify derives a URL-safe identifier from a folder display name.
// The slug is stored at creation time and never recomputed on rename;
// it is unique only among sibling folders, not globally.
//
// Rules: trim and lowercase, turn separators into dashes, drop everything
// outside [a-z0-9-], collapse dash runs, trim boundary dashes.
//
//	"Slow Burn"   → "slow-burn"
//	"2024_Reads"  → "2024-reads"
//	"Sci/Fi!"     → "sci-fi"
func Slugify(name string) (string, error) {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugSeparatorPattern.ReplaceAllString(slug, "-")
	slug = slugInvalidPattern.ReplaceAllString(slug, "")
	slug = slugDashRunPattern.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "", fmt.Errorf("%w: name %q produces an empty slug", ErrValidation, name)
	}
	return slug, nil
}
