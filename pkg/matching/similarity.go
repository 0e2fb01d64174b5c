package matching

import "strings"

// Scorer computes a similarity score in [0, 1] between two strings. The
// database-side matching uses the pg_trgm similarity() function; this
// interface lets in-process callers (and tests) rank with the same contract.
type Scorer interface {
	Similarity(a, b string) float64
}

// TrigramScorer mirrors pg_trgm's trigram similarity: strings are
// lowercased, split on non-alphanumeric characters, and each word is
// padded with two leading spaces and one trailing space before the
// trigram sets are compared.
type TrigramScorer struct{}

// NewTrigramScorer creates a trigram scorer.
func NewTrigramScorer() *TrigramScorer {
	return &TrigramScorer{}
}

// Similarity returns |intersection| / |union| of the two trigram sets.
func (s *TrigramScorer) Similarity(a, b string) float64 {
	ta := trigramSet(a)
	tb := trigramSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}

	union := len(ta) + len(tb) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

func trigramSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range splitWords(strings.ToLower(s)) {
		padded := "  " + word + " "
		for i := 0; i+3 <= len(padded); i++ {
			set[padded[i:i+3]] = struct{}{}
		}
	}
	return set
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		isDigit := r >= '0' && r <= '9'
		isLower := r >= 'a' && r <= 'z'
		return !isDigit && !isLower
	})
}
