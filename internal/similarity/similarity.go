// Package similarity provides normalized edit-distance scoring for
// free-text transaction descriptions.
package similarity

import (
	"github.com/agnivade/levenshtein"
)

// Score returns the normalized edit-distance similarity between two strings
// as a value in [0, 1]: (maxLen - editDistance) / maxLen. Two empty strings
// score 1.0. Comparison is case-sensitive; callers fold case when they want
// case-insensitive behavior.
func Score(a, b string) float64 {
	aLen := len([]rune(a))
	bLen := len([]rune(b))

	maxLen := aLen
	if bLen > maxLen {
		maxLen = bLen
	}
	if maxLen == 0 {
		return 1.0
	}

	dist := levenshtein.ComputeDistance(a, b)
	return float64(maxLen-dist) / float64(maxLen)
}
