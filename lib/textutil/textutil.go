package textutil

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName lowercases `name` and removes every whitespace character,
// it is used to compare column headers and labels loosely.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t\ufeff")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// Closest returns the candidate most similar to `name` by Jaro-Winkler
// similarity, similarity is 0 when there are no candidates.
func Closest(name string, candidates []string) (best string, similarity float64) {
	normalized := NormalizeName(name)
	for _, candidate := range candidates {
		score := matchr.JaroWinkler(normalized, NormalizeName(candidate), false)
		if score > similarity {
			similarity = score
			best = candidate
		}
	}
	return best, similarity
}
