// Package similarity scores lexical closeness of free-text location strings.
// There is deliberately no geocoding here: origins are whatever users typed
// ("Campus Nord", "gare centrale"), so we compare words, not coordinates.
package similarity

import "strings"

// Score returns a similarity in [0,1] between two location strings.
// Exact match (case-folded) scores 1.0, substring containment either way
// scores 0.8, otherwise the Jaccard index over whitespace-separated word
// sets. Empty input on either side scores 0.
func Score(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	la := strings.ToLower(a)
	lb := strings.ToLower(b)
	if la == lb {
		return 1.0
	}
	if strings.Contains(la, lb) || strings.Contains(lb, la) {
		return 0.8
	}
	return jaccard(wordSet(la), wordSet(lb))
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
