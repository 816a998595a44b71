package notify

import "strings"

// placeholderGrades are the portal's renderings of "not graded yet".
// Transitions into or between these values are not announcements.
var placeholderGrades = map[string]struct{}{
	"":             {},
	"-":            {},
	"/":            {},
	"na":           {},
	"n/a":          {},
	"undetermined": {},
}

// normalize collapses internal whitespace and trims, so cosmetic
// re-renders of the same portal cell compare equal.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// foldKey is the comparison form of a value: normalized and
// case-folded.
func foldKey(s string) string {
	return strings.ToLower(normalize(s))
}

// isPlaceholderGrade reports whether a grade cell means "no grade".
func isPlaceholderGrade(grade string) bool {
	_, ok := placeholderGrades[foldKey(grade)]
	return ok
}
